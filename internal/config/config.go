// Package config provides TOML configuration loading for the tiltmouse
// server.
//
// The configuration file supports the following structure:
//
//	[server]
//	bind_address = "0.0.0.0"
//	port = 8765
//
//	[motion]
//	tick_hz = 30.0
//	sensitivity = 1.0
//	screen_angle_deg = 0
//
//	[fusion]
//	camera_gate_enabled = true
//	camera_max_age_ms = 250.0
//	camera_still_px = 0.35
//	camera_validator_min_px = 0.75
//	imu_min_px_when_camera_still = 2.5
//	imu_opposite_max_px_when_camera_still = 6.0
//	max_angle_deg = 40.0
//	min_mag = 0.01
//	weak_fallback_scale = 0.35
//
//	[smoothing]
//	half_life_ms = 80.0
//	deadzone_px = 0.25
//	max_step_px = 120.0
//
// Example usage:
//
//	cfg, err := config.Load("config.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("bind address: %s\n", cfg.Server.BindAddress)
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the complete configuration for the tiltmouse server.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Motion    MotionConfig    `toml:"motion"`
	Fusion    FusionConfig    `toml:"fusion"`
	Smoothing SmoothingConfig `toml:"smoothing"`
}

// ServerConfig holds the transport listener settings. Transport/TLS
// internals beyond the bind address are out of scope; see pkg/transport.
type ServerConfig struct {
	// BindAddress is the interface to listen on (default: "0.0.0.0").
	BindAddress string `toml:"bind_address"`
	// Port is the TCP port to listen on (default: 8765).
	Port int `toml:"port"`
}

// MotionConfig holds the top-level motion loop tuning.
type MotionConfig struct {
	// TickHz is the fixed fusion/emit rate (default: 240.0). A ConfigMsg can
	// override this per session, typically tying it to the phone's
	// reported camera_fps.
	TickHz float64 `toml:"tick_hz"`
	// Sensitivity scales the fused delta before smoothing (default: 1.0).
	Sensitivity float64 `toml:"sensitivity"`
	// ScreenAngleDeg is the default screen rotation applied to every
	// tracker's raw deltas (default: 0).
	ScreenAngleDeg int `toml:"screen_angle_deg"`
}

// FusionConfig holds the Fusion arbitration tuning. Field meanings mirror
// motion.FusionConfig; see pkg/motion/fusion.go.
type FusionConfig struct {
	CameraGateEnabled               bool    `toml:"camera_gate_enabled"`
	CameraMaxAgeMs                  float64 `toml:"camera_max_age_ms"`
	CameraStillPx                   float64 `toml:"camera_still_px"`
	CameraValidatorMinPx            float64 `toml:"camera_validator_min_px"`
	ImuMinPxWhenCameraStill         float64 `toml:"imu_min_px_when_camera_still"`
	ImuOppositeMaxPxWhenCameraStill float64 `toml:"imu_opposite_max_px_when_camera_still"`
	MaxAngleDeg                     float64 `toml:"max_angle_deg"`
	MinMag                          float64 `toml:"min_mag"`
	WeakFallbackScale               float64 `toml:"weak_fallback_scale"`
}

// SmoothingConfig holds the output smoothing filter tuning. Field meanings
// mirror motion.SmoothingConfig; see pkg/motion/smoother.go.
type SmoothingConfig struct {
	HalfLifeMs float64 `toml:"half_life_ms"`
	DeadzonePx float64 `toml:"deadzone_px"`
	MaxStepPx  float64 `toml:"max_step_px"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress: "0.0.0.0",
			Port:        8765,
		},
		Motion: MotionConfig{
			TickHz:         240.0,
			Sensitivity:    1.0,
			ScreenAngleDeg: 0,
		},
		Fusion: FusionConfig{
			CameraGateEnabled:               true,
			CameraMaxAgeMs:                  250.0,
			CameraStillPx:                   0.35,
			CameraValidatorMinPx:            0.75,
			ImuMinPxWhenCameraStill:         2.5,
			ImuOppositeMaxPxWhenCameraStill: 6.0,
			MaxAngleDeg:                     40.0,
			MinMag:                          0.01,
			WeakFallbackScale:               0.35,
		},
		Smoothing: SmoothingConfig{
			HalfLifeMs: 80.0,
			DeadzonePx: 0.25,
			MaxStepPx:  120.0,
		},
	}
}

// Load reads and parses a TOML configuration file.
// If the file does not exist, it returns the default configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Motion.TickHz <= 0 {
		return fmt.Errorf("motion tick_hz must be positive, got %f", c.Motion.TickHz)
	}
	if c.Motion.Sensitivity <= 0 {
		return fmt.Errorf("motion sensitivity must be positive, got %f", c.Motion.Sensitivity)
	}
	if c.Fusion.MinMag < 0 {
		return fmt.Errorf("fusion min_mag must be non-negative, got %f", c.Fusion.MinMag)
	}
	if c.Smoothing.HalfLifeMs < 0 {
		return fmt.Errorf("smoothing half_life_ms must be non-negative, got %f", c.Smoothing.HalfLifeMs)
	}
	return nil
}
