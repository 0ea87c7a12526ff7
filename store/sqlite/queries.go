package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/salon-engine/salon"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the SQL for every operation. Bound to a *sql.Tx it is the
// salon.Tx handed to WithTx callbacks.
type queries struct {
	db execer
}

var _ salon.Tx = queries{}

// =============================================================================
// BOOKINGS
// =============================================================================

const bookingColumns = `id, customer_id, guest_name, guest_phone, is_walk_in, employee_id,
	booking_date, booking_time, status, token_seq, is_rescheduled,
	estimated_start, estimated_end, actual_start, actual_end, total_price, created_at`

func (q queries) GetBooking(ctx context.Context, id salon.BookingID) (*salon.Booking, error) {
	bookings, err := q.queryBookings(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", string(id))
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, &salon.NotFoundError{Resource: "booking", ID: string(id)}
	}
	return &bookings[0], nil
}

func (q queries) ListBookings(ctx context.Context, f salon.BookingFilter) ([]salon.Booking, error) {
	var where []string
	var args []any

	if f.Date != nil {
		where = append(where, "booking_date = ?")
		args = append(args, salon.FormatDate(*f.Date))
	}
	if f.EmployeeID != nil {
		where = append(where, "employee_id = ?")
		args = append(args, string(*f.EmployeeID))
	}
	if f.CustomerID != nil {
		where = append(where, "customer_id = ?")
		args = append(args, string(*f.CustomerID))
	}
	if f.Unassigned {
		where = append(where, "employee_id IS NULL")
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}

	query := "SELECT " + bookingColumns + " FROM bookings"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY booking_date, booking_time, token_seq"

	return q.queryBookings(ctx, query, args...)
}

func (q queries) queryBookings(ctx context.Context, query string, args ...any) ([]salon.Booking, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}

	var bookings []salon.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := q.attachItems(ctx, bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func scanBooking(rows *sql.Rows) (salon.Booking, error) {
	var b salon.Booking
	var id, date, status, total, createdAt string
	var customer, employee sql.NullString
	var estStart, estEnd, actStart, actEnd sql.NullString
	var slot int

	err := rows.Scan(&id, &customer, &b.GuestName, &b.GuestPhone, &b.IsWalkIn, &employee,
		&date, &slot, &status, &b.TokenSeq, &b.IsRescheduled,
		&estStart, &estEnd, &actStart, &actEnd, &total, &createdAt)
	if err != nil {
		return b, fmt.Errorf("failed to scan booking: %w", err)
	}

	b.ID = salon.BookingID(id)
	b.Status = salon.Status(status)
	b.Time = salon.SlotTime(slot)
	if customer.Valid {
		c := salon.UserID(customer.String)
		b.CustomerID = &c
	}
	if employee.Valid {
		e := salon.EmployeeID(employee.String)
		b.EmployeeID = &e
	}
	if b.Date, err = time.Parse(salon.DateLayout, date); err != nil {
		return b, fmt.Errorf("booking %s: bad date: %w", id, err)
	}
	if b.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return b, fmt.Errorf("booking %s: bad total: %w", id, err)
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return b, fmt.Errorf("booking %s: bad created_at: %w", id, err)
	}
	for _, f := range []struct {
		dst **time.Time
		src sql.NullString
	}{{&b.EstimatedStart, estStart}, {&b.EstimatedEnd, estEnd}, {&b.ActualStart, actStart}, {&b.ActualEnd, actEnd}} {
		if *f.dst, err = scanNullTime(f.src); err != nil {
			return b, fmt.Errorf("booking %s: bad timestamp: %w", id, err)
		}
	}
	return b, nil
}

func (q queries) attachItems(ctx context.Context, bookings []salon.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	index := make(map[string]int, len(bookings))
	args := make([]any, len(bookings))
	for i, b := range bookings {
		index[string(b.ID)] = i
		args[i] = string(b.ID)
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT booking_id, service_id, service_name, price, duration_minutes
		FROM booking_items
		WHERE booking_id IN (`+placeholders(len(bookings))+`)
		ORDER BY id
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to query booking items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bookingID, serviceID, price string
		var it salon.BookingItem
		if err := rows.Scan(&bookingID, &serviceID, &it.ServiceName, &price, &it.DurationMinutes); err != nil {
			return fmt.Errorf("failed to scan booking item: %w", err)
		}
		it.ServiceID = salon.ServiceID(serviceID)
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("booking item %s: bad price: %w", bookingID, err)
		}
		i := index[bookingID]
		bookings[i].Items = append(bookings[i].Items, it)
	}
	return rows.Err()
}

func (q queries) NextTokenSeq(ctx context.Context, date time.Time) (int, error) {
	var next int
	err := q.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(token_seq), 0) + 1 FROM bookings WHERE booking_date = ?",
		salon.FormatDate(date)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate token: %w", err)
	}
	return next, nil
}

func (q queries) InsertBooking(ctx context.Context, b *salon.Booking) error {
	var customer, employee sql.NullString
	if b.CustomerID != nil {
		customer = nullString(string(*b.CustomerID))
	}
	if b.EmployeeID != nil {
		employee = nullString(string(*b.EmployeeID))
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(b.ID), customer, b.GuestName, b.GuestPhone, b.IsWalkIn, employee,
		salon.FormatDate(b.Date), int(b.Time), string(b.Status), b.TokenSeq, b.IsRescheduled,
		nullTime(b.EstimatedStart), nullTime(b.EstimatedEnd), nullTime(b.ActualStart), nullTime(b.ActualEnd),
		b.TotalPrice.String(), formatTime(b.CreatedAt))
	if isUniqueConstraintError(err) {
		return fmt.Errorf("booking %s (%s on %s): %w", b.ID, b.Token(), salon.FormatDate(b.Date), salon.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	for _, it := range b.Items {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO booking_items (booking_id, service_id, service_name, price, duration_minutes)
			VALUES (?, ?, ?, ?, ?)
		`, string(b.ID), string(it.ServiceID), it.ServiceName, it.Price.String(), it.DurationMinutes)
		if err != nil {
			return fmt.Errorf("failed to insert booking item: %w", err)
		}
	}
	return nil
}

func (q queries) UpdateBookingStatus(ctx context.Context, id salon.BookingID, change salon.StatusChange) error {
	if len(change.From) == 0 {
		return errors.New("status change requires at least one source status")
	}
	args := []any{string(change.To), nullTime(change.ActualStart), nullTime(change.ActualEnd), string(id)}
	for _, st := range change.From {
		args = append(args, string(st))
	}

	res, err := q.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = ?,
			actual_start = COALESCE(?, actual_start),
			actual_end = COALESCE(?, actual_end)
		WHERE id = ? AND status IN (`+placeholders(len(change.From))+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	return expectOneRow(res)
}

func (q queries) RescheduleBooking(ctx context.Context, id salon.BookingID, to salon.SlotTime, estStart, estEnd time.Time) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE bookings
		SET booking_time = ?, estimated_start = ?, estimated_end = ?, is_rescheduled = 1
		WHERE id = ? AND is_rescheduled = 0 AND status IN (?, ?)
	`, int(to), formatTime(estStart), formatTime(estEnd), string(id),
		string(salon.StatusPending), string(salon.StatusConfirmed))
	if err != nil {
		return fmt.Errorf("failed to reschedule booking: %w", err)
	}
	return expectOneRow(res)
}

func (q queries) AssignEmployee(ctx context.Context, id salon.BookingID, employee salon.EmployeeID) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE bookings SET employee_id = ? WHERE id = ? AND employee_id IS NULL",
		string(employee), string(id))
	if err != nil {
		return fmt.Errorf("failed to assign booking: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return salon.ErrConcurrentModification
	}
	return nil
}

// =============================================================================
// SERVICES
// =============================================================================

func (q queries) GetService(ctx context.Context, id salon.ServiceID) (*salon.Service, error) {
	services, err := q.queryServices(ctx, "SELECT id, name, price, duration_minutes, is_active FROM services WHERE id = ?", string(id))
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, &salon.NotFoundError{Resource: "service", ID: string(id)}
	}
	return &services[0], nil
}

func (q queries) ListServices(ctx context.Context) ([]salon.Service, error) {
	return q.queryServices(ctx, "SELECT id, name, price, duration_minutes, is_active FROM services ORDER BY name")
}

func (q queries) queryServices(ctx context.Context, query string, args ...any) ([]salon.Service, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()

	var services []salon.Service
	for rows.Next() {
		var s salon.Service
		var id, price string
		if err := rows.Scan(&id, &s.Name, &price, &s.DurationMinutes, &s.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		s.ID = salon.ServiceID(id)
		if s.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("service %s: bad price: %w", id, err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

// =============================================================================
// STAFF
// =============================================================================

const staffColumns = `id, user_id, name, job_title, commission_rate, wallet_balance,
	is_available, base_salary, shift_start, created_at`

func (q queries) GetStaff(ctx context.Context, id salon.EmployeeID) (*salon.StaffProfile, error) {
	staff, err := q.queryStaff(ctx, "SELECT "+staffColumns+" FROM staff WHERE id = ?", string(id))
	if err != nil {
		return nil, err
	}
	if len(staff) == 0 {
		return nil, &salon.NotFoundError{Resource: "staff", ID: string(id)}
	}
	return &staff[0], nil
}

func (q queries) GetStaffByUser(ctx context.Context, user salon.UserID) (*salon.StaffProfile, error) {
	staff, err := q.queryStaff(ctx, "SELECT "+staffColumns+" FROM staff WHERE user_id = ?", string(user))
	if err != nil {
		return nil, err
	}
	if len(staff) == 0 {
		return nil, &salon.NotFoundError{Resource: "staff for user", ID: string(user)}
	}
	return &staff[0], nil
}

func (q queries) ListStaff(ctx context.Context) ([]salon.StaffProfile, error) {
	return q.queryStaff(ctx, "SELECT "+staffColumns+" FROM staff ORDER BY created_at, id")
}

func (q queries) queryStaff(ctx context.Context, query string, args ...any) ([]salon.StaffProfile, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query staff: %w", err)
	}
	defer rows.Close()

	var out []salon.StaffProfile
	for rows.Next() {
		var s salon.StaffProfile
		var id, user, rate, wallet, base, createdAt string
		var shift sql.NullInt64
		if err := rows.Scan(&id, &user, &s.Name, &s.JobTitle, &rate, &wallet,
			&s.IsAvailable, &base, &shift, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		s.ID = salon.EmployeeID(id)
		s.UserID = salon.UserID(user)
		if shift.Valid {
			st := salon.SlotTime(shift.Int64)
			s.ShiftStart = &st
		}
		if s.CommissionRate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("staff %s: bad commission rate: %w", id, err)
		}
		if s.WalletBalance, err = decimal.NewFromString(wallet); err != nil {
			return nil, fmt.Errorf("staff %s: bad wallet: %w", id, err)
		}
		if s.BaseSalary, err = decimal.NewFromString(base); err != nil {
			return nil, fmt.Errorf("staff %s: bad base salary: %w", id, err)
		}
		if s.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("staff %s: bad created_at: %w", id, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q queries) InsertStaff(ctx context.Context, s *salon.StaffProfile) error {
	var shift sql.NullInt64
	if s.ShiftStart != nil {
		shift = sql.NullInt64{Int64: int64(*s.ShiftStart), Valid: true}
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO staff (`+staffColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(s.ID), string(s.UserID), s.Name, s.JobTitle, s.CommissionRate.String(),
		s.WalletBalance.String(), s.IsAvailable, s.BaseSalary.String(), shift, formatTime(s.CreatedAt))
	if isUniqueConstraintError(err) {
		return fmt.Errorf("staff for user %s: %w", s.UserID, salon.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert staff: %w", err)
	}
	return nil
}

func (q queries) SetAvailability(ctx context.Context, employee salon.EmployeeID, available bool) error {
	res, err := q.db.ExecContext(ctx, "UPDATE staff SET is_available = ? WHERE id = ?", available, string(employee))
	if err != nil {
		return fmt.Errorf("failed to set availability: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return &salon.NotFoundError{Resource: "staff", ID: string(employee)}
	}
	return nil
}

// AddToWallet is a compare-and-set on the stored text so an interleaved
// writer makes this call fail instead of losing an increment.
func (q queries) AddToWallet(ctx context.Context, employee salon.EmployeeID, delta decimal.Decimal) (decimal.Decimal, error) {
	raw, current, err := q.wallet(ctx, employee)
	if err != nil {
		return decimal.Zero, err
	}
	next := current.Add(delta)

	res, err := q.db.ExecContext(ctx,
		"UPDATE staff SET wallet_balance = ? WHERE id = ? AND wallet_balance = ?",
		next.String(), string(employee), raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update wallet: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return decimal.Zero, err
	}
	return next, nil
}

func (q queries) ResetWallet(ctx context.Context, employee salon.EmployeeID, expected decimal.Decimal) error {
	raw, current, err := q.wallet(ctx, employee)
	if err != nil {
		return err
	}
	if !current.Equal(expected) {
		return salon.ErrConcurrentModification
	}

	res, err := q.db.ExecContext(ctx,
		"UPDATE staff SET wallet_balance = '0' WHERE id = ? AND wallet_balance = ?",
		string(employee), raw)
	if err != nil {
		return fmt.Errorf("failed to reset wallet: %w", err)
	}
	return expectOneRow(res)
}

func (q queries) wallet(ctx context.Context, employee salon.EmployeeID) (string, decimal.Decimal, error) {
	var raw string
	err := q.db.QueryRowContext(ctx, "SELECT wallet_balance FROM staff WHERE id = ?", string(employee)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", decimal.Zero, &salon.NotFoundError{Resource: "staff", ID: string(employee)}
	}
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("failed to read wallet: %w", err)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("staff %s: bad wallet: %w", employee, err)
	}
	return raw, d, nil
}

// =============================================================================
// QUEUE
// =============================================================================

func (q queries) ListQueue(ctx context.Context) ([]salon.QueueEntry, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT employee_id, joined_at FROM staff_queue ORDER BY joined_at, seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer rows.Close()

	var out []salon.QueueEntry
	for rows.Next() {
		var id, joined string
		if err := rows.Scan(&id, &joined); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		t, err := parseTime(joined)
		if err != nil {
			return nil, fmt.Errorf("queue entry %s: bad joined_at: %w", id, err)
		}
		out = append(out, salon.QueueEntry{EmployeeID: salon.EmployeeID(id), JoinedAt: t})
	}
	return out, rows.Err()
}

func (q queries) JoinQueue(ctx context.Context, employee salon.EmployeeID, joinedAt time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO staff_queue (employee_id, joined_at, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM staff_queue))
		ON CONFLICT(employee_id) DO NOTHING
	`, string(employee), formatTime(joinedAt))
	if err != nil {
		return false, fmt.Errorf("failed to join queue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (q queries) RequeueStaff(ctx context.Context, employee salon.EmployeeID, joinedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO staff_queue (employee_id, joined_at, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM staff_queue))
		ON CONFLICT(employee_id) DO UPDATE SET
			joined_at = excluded.joined_at,
			seq = excluded.seq
	`, string(employee), formatTime(joinedAt))
	if err != nil {
		return fmt.Errorf("failed to requeue staff: %w", err)
	}
	return nil
}

func (q queries) LeaveQueue(ctx context.Context, employee salon.EmployeeID) (bool, error) {
	res, err := q.db.ExecContext(ctx, "DELETE FROM staff_queue WHERE employee_id = ?", string(employee))
	if err != nil {
		return false, fmt.Errorf("failed to leave queue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// =============================================================================
// ATTENDANCE & PAYROLL
// =============================================================================

func (q queries) CountLate(ctx context.Context, employee salon.EmployeeID, month time.Time) (int, error) {
	from := salon.MonthOf(month)
	to := from.AddDate(0, 1, 0)

	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance
		WHERE employee_id = ? AND is_late = 1 AND date >= ? AND date < ?
	`, string(employee), salon.FormatDate(from), salon.FormatDate(to)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count late arrivals: %w", err)
	}
	return n, nil
}

func (q queries) PayrollExists(ctx context.Context, employee salon.EmployeeID, month time.Time) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payroll WHERE employee_id = ? AND month = ?",
		string(employee), month.Format(monthLayout)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check payroll: %w", err)
	}
	return n > 0, nil
}

func (q queries) InsertPayroll(ctx context.Context, rec *salon.PayrollRecord) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO payroll (id, employee_id, month, base_salary, commission_earned,
			deductions, total_salary, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(rec.ID), string(rec.EmployeeID), rec.Month.Format(monthLayout),
		rec.BaseSalary.String(), rec.CommissionEarned.String(), rec.Deductions.String(),
		rec.TotalSalary.String(), string(rec.Status), formatTime(rec.CreatedAt))
	if isUniqueConstraintError(err) {
		return fmt.Errorf("payroll for %s in %s: %w", rec.EmployeeID, rec.Month.Format(monthLayout), salon.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert payroll: %w", err)
	}
	return nil
}

func (q queries) ListPayroll(ctx context.Context, employee *salon.EmployeeID) ([]salon.PayrollRecord, error) {
	query := `SELECT id, employee_id, month, base_salary, commission_earned,
		deductions, total_salary, status, created_at FROM payroll`
	var args []any
	if employee != nil {
		query += " WHERE employee_id = ?"
		args = append(args, string(*employee))
	}
	query += " ORDER BY month DESC, employee_id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payroll: %w", err)
	}
	defer rows.Close()

	var out []salon.PayrollRecord
	for rows.Next() {
		var r salon.PayrollRecord
		var id, emp, month, base, commission, deductions, total, status, createdAt string
		if err := rows.Scan(&id, &emp, &month, &base, &commission, &deductions, &total, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payroll: %w", err)
		}
		r.ID = salon.PayrollID(id)
		r.EmployeeID = salon.EmployeeID(emp)
		r.Status = salon.PayrollStatus(status)
		if r.Month, err = time.Parse(monthLayout, month); err != nil {
			return nil, fmt.Errorf("payroll %s: bad month: %w", id, err)
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("payroll %s: bad created_at: %w", id, err)
		}
		for _, f := range []struct {
			dst *decimal.Decimal
			src string
		}{{&r.BaseSalary, base}, {&r.CommissionEarned, commission}, {&r.Deductions, deductions}, {&r.TotalSalary, total}} {
			if *f.dst, err = decimal.NewFromString(f.src); err != nil {
				return nil, fmt.Errorf("payroll %s: bad amount: %w", id, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
