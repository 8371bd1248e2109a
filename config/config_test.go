package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_FileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: ":9090"
jwt:
  secret: "s3cret"
matchmaking:
  maxSupported: 8
`), 0o600))

	c, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", c.Server.Port)
	assert.Equal(t, "s3cret", c.JWT.Secret)
	assert.Equal(t, 8, c.Matchmaking.MaxSupported)
	// defaults
	assert.Equal(t, "default", c.Matchmaking.Pool)
	assert.Equal(t, 86400, c.JWT.TTL)
	assert.Equal(t, "127.0.0.1:6379", c.Redis.Addr)
	assert.Equal(t, "info", c.Log.Level)
}

func TestRead_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("redis:\n  addr: \"file:6379\"\n"), 0o600))

	t.Setenv("TURNMATCH_REDIS_ADDR", "env:6379")

	c, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "env:6379", c.Redis.Addr)
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_DotEnv(t *testing.T) {
	t.Setenv("TURNMATCH_JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("TURNMATCH_JWT_SECRET"))
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jwt:\n  secret: \"file\"\n"), 0o600))

	var buf bytes.Buffer
	logger := log.New(&buf)

	// 没有 .env：只告警
	c, err := LoadFile(path, logger)
	require.NoError(t, err)
	assert.Equal(t, "file", c.JWT.Secret)
	assert.Contains(t, buf.String(), ".env not loaded")

	// .env 里的变量覆盖文件
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TURNMATCH_JWT_SECRET=dotenv\n"), 0o600))
	buf.Reset()
	c, err = LoadFile(path, logger)
	require.NoError(t, err)
	assert.Equal(t, "dotenv", c.JWT.Secret)
	assert.Empty(t, buf.String())

	_, err = LoadFile(filepath.Join(dir, "nope.yaml"), logger)
	assert.Error(t, err)
}
