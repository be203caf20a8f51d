package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlags_OnlyChangedFlagsApply(t *testing.T) {
	t.Setenv(EnvPort, "9300")
	t.Setenv(EnvHost, "10.1.1.1")

	var f Flags
	fs := pflag.NewFlagSet("exporter", pflag.ContinueOnError)
	f.Register(fs)
	require.NoError(t, fs.Parse([]string{"--host", "127.0.0.1", "--refresh-interval", "1m", "--env-file", ""}))

	cfg, err := f.Load(fs)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host, "flag over environment")
	assert.Equal(t, 9300, cfg.Port, "unset flag keeps the environment value")
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
}

func TestFlags_InvalidValuesFail(t *testing.T) {
	var f Flags
	fs := pflag.NewFlagSet("exporter", pflag.ContinueOnError)
	f.Register(fs)
	require.NoError(t, fs.Parse([]string{"--port", "0", "--env-file", ""}))

	_, err := f.Load(fs)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
