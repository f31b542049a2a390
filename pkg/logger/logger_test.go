package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitializeWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	l := Initialize("transcoding_service", dir)

	l.Info("job added", zap.String("job_id", "1"))
	l.Debug("hidden while debug is off")
	l.log.Sync()

	files, err := filepath.Glob(filepath.Join(dir, "log_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"job added"`)
	assert.Contains(t, string(raw), `"service":"transcoding_service"`)
	assert.Contains(t, string(raw), `"job_id":"1"`)
	assert.NotContains(t, string(raw), "hidden while debug is off")
}

func TestDebugModeSharedWithChildren(t *testing.T) {
	l := Initialize("transcoding_service", "")
	child := l.With(zap.String("job_id", "7"))

	assert.False(t, child.DebugMode())
	l.SetDebugMode(true)
	assert.True(t, child.DebugMode())
	child.SetDebugMode(false)
	assert.False(t, l.DebugMode())
}

func TestSetNewNop(t *testing.T) {
	SetNewNop()
	assert.NotPanics(t, func() {
		Log.Info("nothing")
		Log.With(zap.String("k", "v")).Warn("nothing")
	})
}
