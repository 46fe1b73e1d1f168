//go:build !linux

package hw

import "fmt"

type GpiodLine struct{}

func OpenGpiodLine(chip string, offset int) (*GpiodLine, error) {
	return nil, fmt.Errorf("gpiod driver not supported on this platform")
}

func (l *GpiodLine) ConfigureOutput(initial bool) error {
	return fmt.Errorf("gpiod driver not supported on this platform")
}

func (l *GpiodLine) Set(high bool) error {
	return fmt.Errorf("gpiod driver not supported on this platform")
}

func (l *GpiodLine) Close() error { return nil }
