package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical signal defaults file.
const DefaultConfigPath = "config/signal.defaults.json"

// NumJoints mirrors the COCO-17 layout size. Joint indices in the config are
// validated against it without importing the pose packages.
const NumJoints = 17

// SignalConfig holds the tunable parameters of the keypoint signal pipeline.
// Pointer fields distinguish "unset" from zero so partial JSON files fall
// back to defaults through the Get* accessors.
type SignalConfig struct {
	// Smoothing (Savitzky-Golay)
	WindowLength *int  `json:"window_length,omitempty"`
	PolyOrder    *int  `json:"poly_order,omitempty"`
	Smooth       *bool `json:"smooth,omitempty"`

	// Gap filling
	FillGaps *bool `json:"fill_gaps,omitempty"`

	// Normalisation reference joints (COCO-17 indices)
	LeftShoulder  *int     `json:"left_shoulder,omitempty"`
	RightShoulder *int     `json:"right_shoulder,omitempty"`
	LeftHip       *int     `json:"left_hip,omitempty"`
	RightHip      *int     `json:"right_hip,omitempty"`
	TorsoEpsilon  *float64 `json:"torso_epsilon,omitempty"`
}

func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrFloat64(v float64) *float64 { return &v }

// EmptySignalConfig returns a SignalConfig with all fields unset.
func EmptySignalConfig() *SignalConfig {
	return &SignalConfig{}
}

// DefaultSignalConfig returns a fully populated config equal to the
// built-in defaults.
func DefaultSignalConfig() *SignalConfig {
	c := EmptySignalConfig()
	return &SignalConfig{
		WindowLength:  ptrInt(c.GetWindowLength()),
		PolyOrder:     ptrInt(c.GetPolyOrder()),
		Smooth:        ptrBool(c.GetSmooth()),
		FillGaps:      ptrBool(c.GetFillGaps()),
		LeftShoulder:  ptrInt(c.GetLeftShoulder()),
		RightShoulder: ptrInt(c.GetRightShoulder()),
		LeftHip:       ptrInt(c.GetLeftHip()),
		RightHip:      ptrInt(c.GetRightHip()),
		TorsoEpsilon:  ptrFloat64(c.GetTorsoEpsilon()),
	}
}

// LoadSignalConfig loads a SignalConfig from a JSON file. The file must have
// a .json extension and be under 1MB. Omitted fields keep their defaults.
func LoadSignalConfig(path string) (*SignalConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySignalConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *SignalConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadSignalConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *SignalConfig) Validate() error {
	w, p := c.GetWindowLength(), c.GetPolyOrder()
	if w < 1 || w%2 == 0 {
		return fmt.Errorf("window_length must be a positive odd number, got %d", w)
	}
	if p < 0 {
		return fmt.Errorf("poly_order must be non-negative, got %d", p)
	}
	if p >= w {
		return fmt.Errorf("poly_order must be less than window_length, got %d >= %d", p, w)
	}

	joints := map[string]int{
		"left_shoulder":  c.GetLeftShoulder(),
		"right_shoulder": c.GetRightShoulder(),
		"left_hip":       c.GetLeftHip(),
		"right_hip":      c.GetRightHip(),
	}
	for name, idx := range joints {
		if idx < 0 || idx >= NumJoints {
			return fmt.Errorf("%s must be a joint index in [0,%d), got %d", name, NumJoints, idx)
		}
	}

	if eps := c.GetTorsoEpsilon(); eps <= 0 {
		return fmt.Errorf("torso_epsilon must be positive, got %g", eps)
	}
	return nil
}

// GetWindowLength returns the window_length value or the default.
func (c *SignalConfig) GetWindowLength() int {
	if c.WindowLength == nil {
		return 7
	}
	return *c.WindowLength
}

// GetPolyOrder returns the poly_order value or the default.
func (c *SignalConfig) GetPolyOrder() int {
	if c.PolyOrder == nil {
		return 3
	}
	return *c.PolyOrder
}

// GetSmooth returns the smooth value or the default.
func (c *SignalConfig) GetSmooth() bool {
	if c.Smooth == nil {
		return true
	}
	return *c.Smooth
}

// GetFillGaps returns the fill_gaps value or the default.
func (c *SignalConfig) GetFillGaps() bool {
	if c.FillGaps == nil {
		return true
	}
	return *c.FillGaps
}

// GetLeftShoulder returns the left_shoulder joint index or the COCO default.
func (c *SignalConfig) GetLeftShoulder() int {
	if c.LeftShoulder == nil {
		return 5
	}
	return *c.LeftShoulder
}

// GetRightShoulder returns the right_shoulder joint index or the COCO default.
func (c *SignalConfig) GetRightShoulder() int {
	if c.RightShoulder == nil {
		return 6
	}
	return *c.RightShoulder
}

// GetLeftHip returns the left_hip joint index or the COCO default.
func (c *SignalConfig) GetLeftHip() int {
	if c.LeftHip == nil {
		return 11
	}
	return *c.LeftHip
}

// GetRightHip returns the right_hip joint index or the COCO default.
func (c *SignalConfig) GetRightHip() int {
	if c.RightHip == nil {
		return 12
	}
	return *c.RightHip
}

// GetTorsoEpsilon returns the torso_epsilon value or the default.
func (c *SignalConfig) GetTorsoEpsilon() float64 {
	if c.TorsoEpsilon == nil {
		return 1e-3
	}
	return *c.TorsoEpsilon
}
