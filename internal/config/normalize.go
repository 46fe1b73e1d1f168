package config

import "github.com/coreman2200/tlc5940/internal/tlc5940"

// Normalize fills derived fields. Call it only after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	switch {
	case len(cfg.Device.Names) > 0:
		cfg.Device.Channels = len(cfg.Device.Names)
	case cfg.Device.Channels == 0:
		cfg.Device.Channels = tlc5940.DefaultChannels
	}
	if cfg.Device.InputBits == 0 {
		cfg.Device.InputBits = tlc5940.GSBits
	}

	// A simulated rig has no lines to claim.
	if cfg.Driver == "sim" {
		cfg.Blank.Driver = "sim"
		cfg.GSCLK.Driver = "sim"
	}
}
