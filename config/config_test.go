package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bonding.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bonding.toml")
	contents := `ListenAddress = "127.0.0.1:9000"
DataDir = "/var/lib/bonding"
Environment = "prod"
LogLevel = "debug"
ProgramID = "TBondmkCYxaPCKG4CHYfVTcwQ8on31xnJrPzk8F8WsS"
MetricsEnabled = false

[rate_limit]
RequestsPerSecond = 5.5
Burst = 11
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	require.Equal(t, "/var/lib/bonding", cfg.DataDir)
	require.Equal(t, "prod", cfg.Environment)
	require.Equal(t, "debug", cfg.LogLevel)
	require.False(t, cfg.MetricsEnabled)
	require.Equal(t, 5.5, cfg.RateLimit.RequestsPerSecond)
	require.Equal(t, 11, cfg.RateLimit.Burst)
	require.Equal(t, 10, cfg.ReadTimeoutSeconds)
	require.Equal(t, "TBondmkCYxaPCKG4CHYfVTcwQ8on31xnJrPzk8F8WsS", cfg.Program().String())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"program": `ProgramID = "not-base58-0OIl"`,
		"burst": `[rate_limit]
RequestsPerSecond = 1
Burst = 0`,
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bonding.toml")
			require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bonding.yaml")
	contents := `listen: "127.0.0.1:9100"
log_level: warn
log_file: /var/log/bondingd.log
history_dsn: " file:trades.db "
event_history: 64
rate_limit:
  requests_per_second: 2
  burst: 4
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9100", cfg.ListenAddress)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, "/var/log/bondingd.log", cfg.LogFile)
	require.Equal(t, "file:trades.db", cfg.HistoryDSN)
	require.Equal(t, 64, cfg.EventHistory)
	require.Equal(t, 4, cfg.RateLimit.Burst)
	require.Equal(t, Default().DataDir, cfg.DataDir)
	require.True(t, cfg.MetricsEnabled)
}

func TestLoadWritesYAMLDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bonding.yml")
	cfg, err := Load(path)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "data_dir: ./bonding-data")
	require.Contains(t, string(raw), "rate_limit:")

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestAuthSecretFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bonding.toml")
	contents := `[auth]
HMACSecret = "from-file"
Issuer = "strata"
ClockSkewSeconds = 30
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.Auth.HMACSecret)
	require.Equal(t, "strata", cfg.Auth.Issuer)
	require.Equal(t, 30, cfg.Auth.ClockSkewSeconds)

	t.Setenv(SecretEnv, " from-env ")
	cfg, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Auth.HMACSecret)

	fresh := filepath.Join(t.TempDir(), "fresh.toml")
	cfg, err = Load(fresh)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Auth.HMACSecret)
	raw, err := os.ReadFile(fresh)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "from-env")
}
