package diagnostics

import "time"

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Codes pushed on the diag stream.
const (
	TransportFailing   = "TRANSPORT.FAILING"
	TransportRecovered = "TRANSPORT.RECOVERED"
	BlankLost          = "BLANK.LOST"
	Overrun            = "TIMER.OVERRUN"
	TestRunning        = "TEST.RUNNING"
	TestDone           = "TEST.DONE"
	TestUnknown        = "TEST.UNKNOWN"
)

type Diagnostic struct {
	Time           time.Time      `json:"time"`
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// FromTransportError describes a failed frame write.
func FromTransportError(err error, failures uint64) Diagnostic {
	var detail string
	if err != nil {
		detail = err.Error()
	}
	return Diagnostic{
		Severity: Warn,
		Code:     TransportFailing,
		Summary:  "Frame transmit failing, retrying every blank period",
		Detail:   detail,
		LikelyCauses: []string{
			"SPI device busy or removed",
			"spidev permissions",
		},
		SuggestedFixes: []string{
			"check spi.dev and that the spidev overlay is loaded",
		},
		Evidence: map[string]any{"failures": failures},
	}
}

// FromBlankLost describes the fatal loss of the BLANK line.
func FromBlankLost(err error) Diagnostic {
	return Diagnostic{
		Severity:     Err,
		Code:         BlankLost,
		Summary:      "BLANK line lost, refresh stopped",
		Detail:       err.Error(),
		LikelyCauses: []string{"GPIO released by another consumer", "gpiochip removed"},
		SuggestedFixes: []string{
			"restart the daemon once the line is free",
		},
	}
}
