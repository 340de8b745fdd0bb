package preprocess

import "fmt"

// Config controls the preprocessing stages.
type Config struct {
	// TargetSize is the side of the square color copy handed to the classifier.
	TargetSize int `mapstructure:"target_size" yaml:"target_size" json:"target_size"`
	// BlurKernel is the Gaussian blur window applied before thresholding.
	BlurKernel int `mapstructure:"blur_kernel" yaml:"blur_kernel" json:"blur_kernel"`
	// ThresholdBlockSize is the neighbourhood used for the local threshold.
	ThresholdBlockSize int `mapstructure:"threshold_block_size" yaml:"threshold_block_size" json:"threshold_block_size"`
	// ThresholdC is subtracted from the weighted local mean.
	ThresholdC float64 `mapstructure:"threshold_c" yaml:"threshold_c" json:"threshold_c"`
	// CloseKernel is the square structuring element of the closing step.
	CloseKernel     int `mapstructure:"close_kernel"     yaml:"close_kernel"     json:"close_kernel"`
	CloseIterations int `mapstructure:"close_iterations" yaml:"close_iterations" json:"close_iterations"`
}

// DefaultConfig returns the settings tuned for phone photos of packaging.
func DefaultConfig() Config {
	return Config{
		TargetSize:         224,
		BlurKernel:         5,
		ThresholdBlockSize: 11,
		ThresholdC:         2,
		CloseKernel:        3,
		CloseIterations:    1,
	}
}

// Validate checks that all window sizes are odd and large enough to matter.
func (c Config) Validate() error {
	if c.TargetSize <= 0 {
		return fmt.Errorf("target_size must be positive, got %d", c.TargetSize)
	}
	if err := validateOddKernel("blur_kernel", c.BlurKernel); err != nil {
		return err
	}
	if err := validateOddKernel("threshold_block_size", c.ThresholdBlockSize); err != nil {
		return err
	}
	if err := validateOddKernel("close_kernel", c.CloseKernel); err != nil {
		return err
	}
	if c.CloseIterations < 1 {
		return fmt.Errorf("close_iterations must be at least 1, got %d", c.CloseIterations)
	}
	return nil
}

func validateOddKernel(name string, size int) error {
	if size < 3 || size%2 == 0 {
		return fmt.Errorf("%s must be an odd number >= 3, got %d", name, size)
	}
	return nil
}

// gaussianSigma derives sigma from a window size the same way OpenCV does when
// sigma is left at zero.
func gaussianSigma(ksize int) float64 {
	return 0.3*(float64(ksize-1)*0.5-1) + 0.8
}
