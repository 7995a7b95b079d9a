package transfer

import (
	"errors"
	"time"
)

// Config holds the tunables of the transfer manager.
type Config struct {
	// ChunkSize is the size of the binary frames the device sends. It is
	// informational: frames are appended whatever their size.
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// DefaultAmount is the number of clips requested when the caller gives none.
	DefaultAmount int `json:"default_amount" yaml:"default_amount"`

	// StallTimeout aborts a download that makes no progress for this long.
	// Zero disables the timer.
	StallTimeout time.Duration `json:"stall_timeout" yaml:"stall_timeout"`

	// MaxClipBytes aborts a download whose accumulated size exceeds it.
	MaxClipBytes int64 `json:"max_clip_bytes" yaml:"max_clip_bytes"`
}

const (
	DefaultChunkSize     = 64 * 1024         // 64KB, the device's read size
	DefaultAmount        = 5                 // clips shown in the recent list
	DefaultStallTimeout  = 60 * time.Second  // no chunk for a minute
	DefaultMaxClipBytes  = 512 * 1024 * 1024 // 512MB
	MaxRequestableAmount = 1000
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:     DefaultChunkSize,
		DefaultAmount: DefaultAmount,
		StallTimeout:  DefaultStallTimeout,
		MaxClipBytes:  DefaultMaxClipBytes,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.New("chunk_size must be positive")
	}
	if c.DefaultAmount <= 0 {
		return errors.New("default_amount must be positive")
	}
	if c.DefaultAmount > MaxRequestableAmount {
		return errors.New("default_amount cannot be greater than 1000")
	}
	if c.StallTimeout < 0 {
		return errors.New("stall_timeout cannot be negative")
	}
	if c.MaxClipBytes <= 0 {
		return errors.New("max_clip_bytes must be positive")
	}
	if c.MaxClipBytes < int64(c.ChunkSize) {
		return errors.New("max_clip_bytes cannot be less than chunk_size")
	}
	return nil
}
