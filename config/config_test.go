package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/salon-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := config.Load(writeEnv(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "salon.db", cfg.DBPath)
	assert.Equal(t, 30, cfg.DefaultServiceMinutes)
	assert.Equal(t, 15, cfg.RescheduleShiftMinutes)
	assert.True(t, cfg.LatePenalty.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "salon.booking-events", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.False(t, cfg.PayrollAutoRun)
	assert.Equal(t, time.Hour, cfg.PayrollCheckInterval)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	path := writeEnv(t, "AUTH_DISABLED=true\nLATE_PENALTY=75.5\n")
	t.Cleanup(func() {
		os.Unsetenv("AUTH_DISABLED")
		os.Unsetenv("LATE_PENALTY")
	})

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.AuthDisabled)
	assert.Equal(t, "75.5", cfg.LatePenalty.String())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := config.Config{
		Port:                   0,
		DBPath:                 "x.db",
		Timezone:               "Mars/Olympus",
		DefaultServiceMinutes:  0,
		RescheduleShiftMinutes: 15,
		ShutdownTimeout:        time.Second,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "SALON_TIMEZONE")
	assert.Contains(t, err.Error(), "DEFAULT_SERVICE_MINUTES")
}

func writeEnv(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
