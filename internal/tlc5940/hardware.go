package tlc5940

// Transport performs one synchronous bus write of a packed frame.
type Transport interface {
	Transmit(frame []byte) error
}

// BlankLine drives the chip's BLANK input.
type BlankLine interface {
	// ConfigureOutput claims the line as an output at the given level.
	ConfigureOutput(initial bool) error
	Set(high bool) error
}

// GSClock is the duty-cycle clock source that feeds GSCLK.
type GSClock interface {
	Configure(dutyNs, periodNs int64) error
	Enable() error
	Disable() error
}

// Hardware bundles the collaborators a Device drives. Clock may be nil
// when GSCLK is generated elsewhere.
type Hardware struct {
	Transport Transport
	Blank     BlankLine
	Clock     GSClock

	// Close, if set, releases the underlying handles after the device
	// has stopped using them.
	Close func() error
}
