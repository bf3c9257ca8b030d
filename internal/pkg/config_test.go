package pkg

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCommon(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
version: "1.0.0"
log:
  log_path: ./logs/log-file.log
  level: debug
server:
  port: "8080"
  downloadWait: 500ms
decoder:
  maxPatches: 10
gamedb:
  type: mongo
  uri: mongodb://localhost:27017
`), 0o644))
	// 子目录中的配置会被合并
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "notify"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notify", "kafka.yml"), []byte(`
notify:
  - type: kafka
    enable: true
    config:
      brokers: ["localhost:9092"]
      topic: netemu.decodes
`), 0o644))
	// 非 yaml 文件被忽略
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not: [yaml"), 0o644))

	cfg, err := InitCommon(dir)
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Server.DownloadWait)
	assert.Equal(t, 10, cfg.Server.DownloadAttempts, "default")
	assert.Equal(t, 10, cfg.Decoder.MaxPatches)
	assert.Equal(t, 16<<20, cfg.Decoder.MaxBufferBytes, "default")
	assert.Equal(t, "mongo", cfg.GameDB.Type)
	assert.Equal(t, []string{"log-file.log", "games.db"}, cfg.Janitor.Keep)

	require.Len(t, cfg.Notify, 1)
	assert.Equal(t, "kafka", cfg.Notify[0].Type)
	assert.True(t, cfg.Notify[0].Enable)
	assert.Equal(t, "netemu.decodes", cfg.Notify[0].Para["topic"])

	ctx := WithConfig(context.Background(), cfg)
	assert.Same(t, cfg, ConfigFromContext(ctx))
	assert.Nil(t, ConfigFromContext(context.Background()))
}

func TestInitCommonMissingDir(t *testing.T) {
	_, err := InitCommon(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
