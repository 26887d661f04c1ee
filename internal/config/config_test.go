package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "models", cfg.ModelDir)
	assert.Equal(t, 640, cfg.DetectionSize)
	assert.InDelta(t, 0.5, cfg.ConfThreshold, 1e-6)
	assert.InDelta(t, 0.4, cfg.NMSThreshold, 1e-6)
	assert.False(t, cfg.CPUOnly)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("FACESWAP_MODEL_DIR", "/opt/faceswap/models")
	t.Setenv("FACESWAP_DETECTION_SIZE", "320")
	t.Setenv("FACESWAP_CPU_ONLY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/opt/faceswap/models", cfg.ModelDir)
	assert.Equal(t, 320, cfg.DetectionSize)
	assert.True(t, cfg.CPUOnly)
}

func TestLoadRejectsMalformedValue(t *testing.T) {
	t.Setenv("FACESWAP_DETECTION_SIZE", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestModelPath(t *testing.T) {
	cfg := Config{ModelDir: "/data/models"}
	assert.Equal(t, filepath.Join("/data/models", "x.onnx"), cfg.ModelPath("x.onnx"))
}
