package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, GetLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, GetLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, GetLevel("warn"))
	assert.Equal(t, logrus.WarnLevel, GetLevel("warning"))
	assert.Equal(t, logrus.ErrorLevel, GetLevel("error"))
	assert.Equal(t, logrus.TraceLevel, GetLevel("trace"))
	assert.Equal(t, logrus.InfoLevel, GetLevel(""))
	assert.Equal(t, logrus.InfoLevel, GetLevel("nonsense"))
}

func TestNew_WritesToRotatedFile(t *testing.T) {
	dir := t.TempDir()
	logger, closer := New(LoggerSetupParams{
		LogFileName:   filepath.Join(dir, "trainer"),
		LogLevel:      "info",
		LogFormatJSON: true,
	})
	logger.WithField("segment", "warmup").Info("segment started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "trainer.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"segment":"warmup"`)
	assert.Contains(t, string(data), "segment started")
}

func TestNew_WithoutFileDiscards(t *testing.T) {
	logger, closer := New(LoggerSetupParams{LogLevel: "debug"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.NoError(t, closer.Close())
}
