//go:build linux

package hw

import (
	"fmt"
	"sync"

	"github.com/warthog618/gpiod"
)

// GpiodLine drives BLANK through the GPIO character device.
type GpiodLine struct {
	mu     sync.Mutex
	chip   *gpiod.Chip
	offset int
	line   *gpiod.Line
}

func OpenGpiodLine(chip string, offset int) (*GpiodLine, error) {
	c, err := gpiod.NewChip(chip, gpiod.WithConsumer("tlc5940"))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", chip, err)
	}
	return &GpiodLine{chip: c, offset: offset}, nil
}

func boolValue(high bool) int {
	if high {
		return 1
	}
	return 0
}

func (l *GpiodLine) ConfigureOutput(initial bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line != nil {
		return l.line.SetValue(boolValue(initial))
	}
	line, err := l.chip.RequestLine(l.offset, gpiod.AsOutput(boolValue(initial)))
	if err != nil {
		return fmt.Errorf("request line %d: %w", l.offset, err)
	}
	l.line = line
	return nil
}

func (l *GpiodLine) Set(high bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line == nil {
		return fmt.Errorf("line %d not requested", l.offset)
	}
	return l.line.SetValue(boolValue(high))
}

func (l *GpiodLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var err error
	if l.line != nil {
		err = l.line.Close()
		l.line = nil
	}
	if l.chip != nil {
		if cerr := l.chip.Close(); err == nil {
			err = cerr
		}
		l.chip = nil
	}
	return err
}
