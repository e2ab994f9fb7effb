package vs

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gogpu/gputypes"
)

// Config is the file form of session settings, usually vs.toml:
//
//	[session]
//	pixel_format = "rgba16float"
//	tile_size = [16, 16]
//	max_stack_depth = 8
//	retain_limit = 2
//
//	[constants]
//	tint = [1.0, 0.8, 0.6, 1.0]
//
//	[variables.pulse]
//	type = "sin"
//	freq = 0.5
type Config struct {
	Session   SessionConfig             `toml:"session"`
	Constants map[string][]float32      `toml:"constants"`
	Variables map[string]map[string]any `toml:"variables"`
}

// SessionConfig holds Context and Compile settings.
type SessionConfig struct {
	PixelFormat    string   `toml:"pixel_format"`
	TileSize       []uint32 `toml:"tile_size"`
	MaxStackDepth  int      `toml:"max_stack_depth"`
	AllowUnderflow bool     `toml:"allow_underflow"`
	RetainLimit    *int     `toml:"retain_limit"`
	SkipUnresolved bool     `toml:"skip_unresolved"`
	FrameSize      []uint32 `toml:"frame_size"`
}

// LoadConfig reads and validates a TOML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vs: cannot read %s: %w", path, err)
	}
	return ParseConfig(string(data))
}

// ParseConfig parses TOML config text.
func ParseConfig(text string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(text, &cfg); err != nil {
		return nil, fmt.Errorf("vs: parse config: %w", err)
	}
	if _, err := cfg.Session.format(); err != nil {
		return nil, err
	}
	if n := len(cfg.Session.TileSize); n != 0 && n != 2 {
		return nil, fmt.Errorf("vs: tile_size needs 2 values, got %d", n)
	}
	if n := len(cfg.Session.FrameSize); n != 0 && n != 2 {
		return nil, fmt.Errorf("vs: frame_size needs 2 values, got %d", n)
	}
	return &cfg, nil
}

func (s SessionConfig) format() (gputypes.TextureFormat, error) {
	switch strings.ToLower(s.PixelFormat) {
	case "", "rgba8unorm":
		return gputypes.TextureFormatRGBA8Unorm, nil
	case "rgba16float":
		return gputypes.TextureFormatRGBA16Float, nil
	case "rgba32float":
		return gputypes.TextureFormatRGBA32Float, nil
	default:
		return gputypes.TextureFormatUndefined, fmt.Errorf("vs: unsupported pixel_format %q", s.PixelFormat)
	}
}

// ContextOptions converts the session settings to Context options.
func (c *Config) ContextOptions() []ContextOption {
	s := c.Session
	f, _ := s.format()
	opts := []ContextOption{WithPixelFormat(f)}
	if len(s.TileSize) == 2 {
		opts = append(opts, WithTileSize(s.TileSize[0], s.TileSize[1]))
	}
	if s.MaxStackDepth > 0 {
		opts = append(opts, WithMaxStackDepth(s.MaxStackDepth))
	}
	if s.AllowUnderflow {
		opts = append(opts, WithAllowUnderflow(true))
	}
	if s.RetainLimit != nil {
		opts = append(opts, WithRetainLimit(*s.RetainLimit))
	}
	if len(s.FrameSize) == 2 {
		opts = append(opts, WithFrameSize(s.FrameSize[0], s.FrameSize[1]))
	}
	return opts
}

// CompileOptions converts the session settings to Compile options.
func (c *Config) CompileOptions() []CompileOption {
	if c.Session.SkipUnresolved {
		return []CompileOption{WithSkipUnresolved()}
	}
	return nil
}

// Apply adds the configured constants and variables to s. Entries already
// present in s are overwritten.
func (c *Config) Apply(s *Script) {
	for k, v := range c.Constants {
		s.SetConstant(k, v...)
	}
	for k, v := range c.Variables {
		s.SetVariable(k, VariableSpec(v))
	}
}
