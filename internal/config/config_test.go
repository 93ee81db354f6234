package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
env: dev
http_server:
  address: localhost:8082
storage:
  path: storage/submissions.json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "localhost:8082", cfg.Addr)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, DriverJSON, cfg.Storage.Driver)
	assert.Equal(t, 3, cfg.Storage.LockRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.Storage.LockBackoff)
	assert.False(t, cfg.Notify.Enabled)
	assert.Equal(t, 587, cfg.Notify.SMTPPort)
	assert.Equal(t, 10*time.Second, cfg.Notify.Timeout)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
env: prod
http_server:
  address: 0.0.0.0:80
  max_body_bytes: 2048
storage:
  driver: sqlite
  path: /var/lib/contact/submissions.db
  lock_retries: 5
  lock_backoff: 250ms
notify:
  enabled: true
  owner_address: owner@example.com
  smtp_host: smtp.example.com
  smtp_port: 2525
  timeout: 3s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(2048), cfg.MaxBodyBytes)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 5, cfg.Storage.LockRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Storage.LockBackoff)
	assert.True(t, cfg.Notify.Enabled)
	assert.Equal(t, "owner@example.com", cfg.Notify.OwnerAddress)
	assert.Equal(t, 2525, cfg.Notify.SMTPPort)
	assert.Equal(t, 3*time.Second, cfg.Notify.Timeout)
}

func TestLoad_ZeroLockRetriesIsKept(t *testing.T) {
	path := writeConfig(t, `
env: dev
http_server:
  address: localhost:8082
storage:
  path: storage/submissions.json
  lock_retries: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Storage.LockRetries)
	assert.Equal(t, time.Duration(0), cfg.Storage.LockWait())
}

func TestStorage_LockWait(t *testing.T) {
	s := Storage{LockRetries: 3, LockBackoff: 100 * time.Millisecond}
	assert.Equal(t, 300*time.Millisecond, s.LockWait())
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
env: dev
http_server:
  address: localhost:8082
storage:
  path: storage/submissions.json
`)
	t.Setenv("STORAGE_PATH", "/tmp/other.json")
	t.Setenv("STORAGE_LOCK_RETRIES", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.json", cfg.Storage.Path)
	assert.Equal(t, 7, cfg.Storage.LockRetries)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown driver": `
env: dev
http_server: {address: "localhost:1"}
storage: {driver: mongo, path: x}
`,
		"email without owner": `
env: dev
http_server: {address: "localhost:1"}
storage: {path: x}
notify: {enabled: true, smtp_host: smtp.example.com}
`,
		"email without host": `
env: dev
http_server: {address: "localhost:1"}
storage: {path: x}
notify: {enabled: true, owner_address: owner@example.com}
`,
		"missing storage path": `
env: dev
http_server: {address: "localhost:1"}
`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "does not exist")
}
