package config

import "time"

// PlatformConfig defines how the monitor reaches the browser companion bridge.
type PlatformConfig struct {
	BridgeURL string `json:"bridge_url,omitempty" yaml:"bridge_url,omitempty" validate:"omitempty,uri"`

	HandshakeTimeoutSeconds int           `json:"handshake_timeout_seconds,omitempty" yaml:"handshake_timeout_seconds,omitempty" validate:"omitempty,min=1"`
	HandshakeTimeout        time.Duration `json:"-" yaml:"-"`

	ReconnectMinSeconds int `json:"reconnect_min_seconds,omitempty" yaml:"reconnect_min_seconds,omitempty" validate:"omitempty,min=1"`
	ReconnectMaxSeconds int `json:"reconnect_max_seconds,omitempty" yaml:"reconnect_max_seconds,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultPlatformConfig creates default platform bridge configuration
func NewDefaultPlatformConfig() PlatformConfig {
	return PlatformConfig{
		BridgeURL:               DefaultBridgeURL,
		HandshakeTimeoutSeconds: DefaultHandshakeTimeoutSecs,
		HandshakeTimeout:        time.Duration(DefaultHandshakeTimeoutSecs) * time.Second,
		ReconnectMinSeconds:     DefaultReconnectMinSeconds,
		ReconnectMaxSeconds:     DefaultReconnectMaxSeconds,
	}
}

// ApplyDurations recomputes derived duration fields after loading from a file.
func (pc *PlatformConfig) ApplyDurations() {
	if pc.HandshakeTimeoutSeconds > 0 {
		pc.HandshakeTimeout = time.Duration(pc.HandshakeTimeoutSeconds) * time.Second
	}
}
