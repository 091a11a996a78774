package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
app:
  name: users
  http:
    port: 8081
jwt:
  secret: dev-secret
db:
  driver: postgres
  dsn: postgres://localhost/users
upstream:
  productsBaseURL: http://127.0.0.1:8080
cascade:
  retryAttempts: 5
`

func writeConfig(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(sample), 0o600))
	return p
}

func TestReadFileAndDefaults(t *testing.T) {
	c, err := Read(writeConfig(t))
	require.NoError(t, err)

	assert.Equal(t, "users", c.App.Name)
	assert.Equal(t, 8081, c.App.HTTP.Port)
	assert.Equal(t, "0.0.0.0", c.App.HTTP.Host)
	assert.Equal(t, "postgres", c.DB.Driver)
	assert.Equal(t, "http://127.0.0.1:8080", c.Upstream.ProductsBaseURL)
	assert.Equal(t, 5, c.Cascade.RetryAttempts)
	assert.Equal(t, 200*time.Millisecond, c.CascadeRetryDelay())
	assert.Equal(t, 15*time.Second, c.CascadePollInterval())
	assert.Equal(t, 30, c.JWT.AccessTokenTTLMin)
}

func TestReadEnvOverride(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "from-env")
	t.Setenv("APP_APP_HTTP_PORT", "9999")

	c, err := Read(writeConfig(t))
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.JWT.Secret)
	assert.Equal(t, 9999, c.App.HTTP.Port)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
