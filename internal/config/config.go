// Package config loads runtime configuration from the environment.
// Every value can be overridden by a CLI flag; the environment supplies
// defaults, prefixed FACESWAP_ (e.g. FACESWAP_MODEL_DIR).
package config

import (
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Config holds process-wide settings.
type Config struct {
	// ModelDir is where model artifacts live.
	ModelDir string `envconfig:"MODEL_DIR" default:"models"`

	// OrtLibrary optionally points at the ONNX Runtime shared library.
	// Empty uses the runtime's platform default.
	OrtLibrary string `envconfig:"ORT_LIBRARY" default:""`

	// DetectionSize is the square input size of the face detector.
	DetectionSize int `envconfig:"DETECTION_SIZE" default:"640"`

	// ConfThreshold is the minimum detection confidence.
	ConfThreshold float32 `envconfig:"CONF_THRESHOLD" default:"0.5"`

	// NMSThreshold is the IoU threshold for non-maximum suppression.
	NMSThreshold float32 `envconfig:"NMS_THRESHOLD" default:"0.4"`

	// CPUOnly disables hardware execution providers.
	CPUOnly bool `envconfig:"CPU_ONLY" default:"false"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	err := envconfig.Process("faceswap", &cfg)
	return cfg, err
}

// ModelPath resolves a model artifact filename inside the model directory.
func (c Config) ModelPath(filename string) string {
	return filepath.Join(c.ModelDir, filename)
}
