package scene

import (
	"fmt"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/onnx"
)

// Config controls the scene-text detector and recognizer.
type Config struct {
	Enabled          bool    `mapstructure:"enabled"           yaml:"enabled"           json:"enabled"`
	DetectionModel   string  `mapstructure:"detection_model"   yaml:"detection_model"   json:"detection_model"`
	RecognitionModel string  `mapstructure:"recognition_model" yaml:"recognition_model" json:"recognition_model"`
	Dictionary       string  `mapstructure:"dictionary"        yaml:"dictionary"        json:"dictionary"`
	DetThresh        float32 `mapstructure:"det_thresh"        yaml:"det_thresh"        json:"det_thresh"`
	BoxThresh        float64 `mapstructure:"box_thresh"        yaml:"box_thresh"        json:"box_thresh"`
	MaxSide          int     `mapstructure:"max_side"          yaml:"max_side"          json:"max_side"`
	RecHeight        int     `mapstructure:"rec_height"        yaml:"rec_height"        json:"rec_height"`
	RecMaxWidth      int     `mapstructure:"rec_max_width"     yaml:"rec_max_width"     json:"rec_max_width"`
	MinRegionArea    int     `mapstructure:"min_region_area"   yaml:"min_region_area"   json:"min_region_area"`
	MinTextConf      float64 `mapstructure:"min_text_conf"     yaml:"min_text_conf"     json:"min_text_conf"`
	NumThreads       int     `mapstructure:"num_threads"       yaml:"num_threads"       json:"num_threads"`

	LibraryPath string         `mapstructure:"-" yaml:"-" json:"-"`
	GPU         onnx.GPUConfig `mapstructure:"-" yaml:"-" json:"-"`
}

// DefaultConfig returns PaddleOCR-style defaults. Model paths are relative to
// the models directory and resolved by the caller.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		DetectionModel:   "detection/text_det.onnx",
		RecognitionModel: "recognition/text_rec.onnx",
		Dictionary:       "recognition/dict.txt",
		DetThresh:        0.3,
		BoxThresh:        0.5,
		MaxSide:          960,
		RecHeight:        48,
		RecMaxWidth:      320,
		MinRegionArea:    16,
		MinTextConf:      0,
	}
}

// Validate checks ranges; model files are checked when the engine is built.
func (c Config) Validate() error {
	if c.DetThresh < 0 || c.DetThresh > 1 {
		return fmt.Errorf("det_thresh must be between 0 and 1, got %f", c.DetThresh)
	}
	if c.BoxThresh < 0 || c.BoxThresh > 1 {
		return fmt.Errorf("box_thresh must be between 0 and 1, got %f", c.BoxThresh)
	}
	if c.MaxSide < 32 {
		return fmt.Errorf("max_side must be at least 32, got %d", c.MaxSide)
	}
	if c.RecHeight <= 0 || c.RecMaxWidth <= 0 {
		return fmt.Errorf("invalid recognition size %dx%d", c.RecMaxWidth, c.RecHeight)
	}
	if c.MinTextConf < 0 || c.MinTextConf > 1 {
		return fmt.Errorf("min_text_conf must be between 0 and 1, got %f", c.MinTextConf)
	}
	return nil
}
