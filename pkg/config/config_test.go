package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "hka-connector", cfg.App.Name)
	assert.Equal(t, 30*time.Second, cfg.HKA.AuthTimeout)
	assert.Equal(t, 60*time.Second, cfg.HKA.SendTimeout)
	assert.Equal(t, 120*time.Second, cfg.HKA.DownloadTimeout)
	assert.Equal(t, 3, cfg.HKA.MaxRetries)
	assert.Equal(t, "0101", cfg.HKA.DefaultOperationType)
	assert.Equal(t, "NIU", cfg.HKA.UnitCode)
	assert.True(t, cfg.HKA.SchedulerEnabled)
	assert.Contains(t, cfg.HKA.TestURL, "demoint.thefactoryhka.com.pe")
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("HKA_MAX_RETRIES", "5")
	v.Set("HKA_DOWNLOAD_TIMEOUT_SECONDS", "300")
	v.Set("HKA_SCHEDULER_ENABLED", "false")
	v.Set("HKA_IMMEDIATE_TERM_ID", "1")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.HKA.MaxRetries)
	assert.Equal(t, 300*time.Second, cfg.HKA.DownloadTimeout)
	assert.False(t, cfg.HKA.SchedulerEnabled)
	assert.Equal(t, "1", cfg.HKA.ImmediateTermID)
}

func TestHKAConfig_Validate(t *testing.T) {
	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	bad := cfg.HKA
	bad.TestURL = "no-es-url"
	bad.MaxRetries = 0
	bad.Timezone = "Marte/Olympus"
	err = bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HKA_TEST_URL")
	assert.Contains(t, err.Error(), "HKA_MAX_RETRIES")
	assert.Contains(t, err.Error(), "HKA_TIMEZONE")
}

func TestDBConfig_DSNEscapaPassword(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss/word", DBName: "hka", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%2Fword@db:5432/hka?sslmode=disable", c.ConnectionString())
}
