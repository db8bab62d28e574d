package env

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Host     string        `env:"TEST_HOST" default:"localhost"`
	Port     int           `env:"TEST_PORT" default:"8080"`
	Enabled  bool          `env:"TEST_ENABLED" default:"true"`
	Timeout  time.Duration `env:"TEST_TIMEOUT" default:"30s"`
	Ratio    float64       `env:"TEST_RATIO"`
	Holidays []string      `env:"TEST_HOLIDAYS"`
	NoDef    string        `env:"TEST_NO_DEF"`
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_HOST", "example.com")
	t.Setenv("TEST_PORT", "9090")
	t.Setenv("TEST_ENABLED", "false")
	t.Setenv("TEST_TIMEOUT", "1m30s")
	t.Setenv("TEST_RATIO", "0.25")
	t.Setenv("TEST_HOLIDAYS", "se.yaml, de.yaml,,")
	t.Setenv("TEST_NO_DEF", "foo")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "example.com", cfg.Host)
	assert.Equal(t, 9090, cfg.Port)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.InDelta(t, 0.25, cfg.Ratio, 1e-9)
	assert.Equal(t, []string{"se.yaml", "de.yaml"}, cfg.Holidays)
	assert.Equal(t, "foo", cfg.NoDef)
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Nil(t, cfg.Holidays)
	assert.Empty(t, cfg.NoDef)
}

func TestLoad_EmptyStringRespected(t *testing.T) {
	t.Setenv("TEST_HOST", "")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("TEST_PORT", "eighty")

	var cfg testConfig
	err := Load(&cfg)

	var invalid ErrInvalidValue
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "TEST_PORT", invalid.EnvVar)
	assert.Equal(t, "Port", invalid.Field)
}

func TestLoad_NotStructPointer(t *testing.T) {
	var cfg testConfig
	err := Load(cfg)

	var notPtr ErrNotStructPointer
	assert.ErrorAs(t, err, &notPtr)
}

func TestLoad_UnsupportedSliceType(t *testing.T) {
	type cfg struct {
		Ports []int `env:"TEST_PORTS"`
	}
	t.Setenv("TEST_PORTS", "1,2")

	var c cfg
	err := Load(&c)

	var unsupported ErrUnsupportedType
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "[]int", unsupported.Kind)
}

type validatedSection struct {
	DSN string `env:"TEST_DSN"`
}

var errDSNMissing = errors.New("dsn missing")

func (v *validatedSection) Validate() error {
	if v.DSN == "" {
		return errDSNMissing
	}
	return nil
}

func TestLoad_ValidatesNestedStructs(t *testing.T) {
	type appConfig struct {
		Database validatedSection
		AppName  string `env:"TEST_APP_NAME" default:"shopfloor"`
	}

	t.Run("missing value fails validation", func(t *testing.T) {
		var cfg appConfig
		assert.ErrorIs(t, Load(&cfg), errDSNMissing)
	})

	t.Run("nested fields are loaded", func(t *testing.T) {
		t.Setenv("TEST_DSN", "postgres://localhost/db")

		var cfg appConfig
		require.NoError(t, Load(&cfg))
		assert.Equal(t, "postgres://localhost/db", cfg.Database.DSN)
		assert.Equal(t, "shopfloor", cfg.AppName)
	})
}
