package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvConfigFile, "testdata/fusion.yaml")
	t.Setenv(EnvDatabaseURL, "sqlite://fusion.db")
	t.Setenv(EnvBindAddress, "127.0.0.1")
	t.Setenv(EnvBindPort, "8080")
	t.Setenv(EnvBindPath, "/api")
}

func TestFromEnv(t *testing.T) {
	setValidEnv(t)

	b, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "testdata/fusion.yaml", b.ConfigFile)
	require.Equal(t, uint16(8080), b.BindPort)
	require.Equal(t, "/api", b.BindPath)
	require.Equal(t, "127.0.0.1:8080", b.Addr())
	require.Equal(t, "info", b.LogLevel)
	require.Equal(t, "json", b.LogFormat)
	require.False(t, b.MetricsEnabled)
}

func TestFromEnvDefaultsConfigFile(t *testing.T) {
	setValidEnv(t)
	t.Setenv(EnvConfigFile, "")

	b, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, DefaultConfigFile, b.ConfigFile)
}

func TestFromEnvBindAddress(t *testing.T) {
	valid := []string{"0.0.0.0", "127.0.0.1", "10.0.0.1", "255.255.255.255", "192.168.1.254"}
	for _, addr := range valid {
		t.Run(addr, func(t *testing.T) {
			setValidEnv(t)
			t.Setenv(EnvBindAddress, addr)
			_, err := FromEnv()
			require.NoError(t, err)
		})
	}

	invalid := []string{"localhost", "256.0.0.1", "1.2.3", "1.2.3.4.5", "", "::1"}
	for _, addr := range invalid {
		t.Run("invalid "+addr, func(t *testing.T) {
			setValidEnv(t)
			t.Setenv(EnvBindAddress, addr)
			_, err := FromEnv()
			require.ErrorContains(t, err, EnvBindAddress)
		})
	}
}

func TestFromEnvBindPort(t *testing.T) {
	setValidEnv(t)
	t.Setenv(EnvBindPort, "65536")
	_, err := FromEnv()
	require.ErrorContains(t, err, EnvBindPort)

	t.Setenv(EnvBindPort, "-1")
	_, err = FromEnv()
	require.ErrorContains(t, err, EnvBindPort)

	t.Setenv(EnvBindPort, "")
	_, err = FromEnv()
	require.ErrorContains(t, err, EnvBindPort)
}

func TestFromEnvRequiresDatabaseURL(t *testing.T) {
	setValidEnv(t)
	t.Setenv(EnvDatabaseURL, "")

	_, err := FromEnv()
	require.ErrorContains(t, err, EnvDatabaseURL)
}

func TestFromEnvConfigFileExtension(t *testing.T) {
	setValidEnv(t)
	t.Setenv(EnvConfigFile, "/etc/fusion/fusion.toml")

	_, err := FromEnv()
	require.ErrorContains(t, err, ".yaml")
}

func TestNormalizePrefix(t *testing.T) {
	cases := map[string]string{
		"":      "",
		"/":     "",
		"api":   "/api",
		"/api":  "/api",
		"/api/": "/api",
		"/v1/gateway": "/v1/gateway",
	}
	for in, want := range cases {
		require.Equal(t, want, normalizePrefix(in), "prefix %q", in)
	}
}

func TestFromEnvMetricsFlag(t *testing.T) {
	setValidEnv(t)
	t.Setenv(EnvMetricsEnabled, "true")

	b, err := FromEnv()
	require.NoError(t, err)
	require.True(t, b.MetricsEnabled)
}
