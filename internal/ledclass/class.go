// Package ledclass is an in-process LED registry: drivers register named
// LEDs with a setter, clients read and write brightness by name.
package ledclass

import (
	"fmt"
	"sync"
)

// SetFunc applies a raw brightness value and returns the value actually
// stored by the driver.
type SetFunc func(value int) (int, error)

// Host accepts LED registrations from a driver.
type Host interface {
	Register(name string, max int, set SetFunc) error
	Unregister(name string) error
}

// LED is a registered LED as seen by clients.
type LED struct {
	Name          string `json:"name"`
	Brightness    int    `json:"brightness"`
	MaxBrightness int    `json:"max_brightness"`
}

type entry struct {
	led LED
	set SetFunc
}

// Class implements Host.
type Class struct {
	mu    sync.RWMutex
	byKey map[string]*entry
	order []string
}

func New() *Class {
	return &Class{byKey: map[string]*entry{}}
}

func (c *Class) Register(name string, max int, set SetFunc) error {
	if name == "" {
		return fmt.Errorf("ledclass: empty name")
	}
	if set == nil {
		return fmt.Errorf("ledclass: %s: nil setter", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byKey[name]; ok {
		return fmt.Errorf("ledclass: %s: %w", name, ErrExists)
	}
	c.byKey[name] = &entry{led: LED{Name: name, MaxBrightness: max}, set: set}
	c.order = append(c.order, name)
	return nil
}

func (c *Class) Unregister(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byKey[name]; !ok {
		return fmt.Errorf("ledclass: %s: %w", name, ErrNotFound)
	}
	delete(c.byKey, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetBrightness hands value to the LED's driver unchanged and remembers
// what the driver stored.
func (c *Class) SetBrightness(name string, value int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byKey[name]
	if !ok {
		return 0, fmt.Errorf("ledclass: %s: %w", name, ErrNotFound)
	}
	stored, err := e.set(value)
	if err != nil {
		return e.led.Brightness, fmt.Errorf("ledclass: %s: %w", name, err)
	}
	e.led.Brightness = stored
	return stored, nil
}

// SetAll sets every LED to value and returns the first error, if any.
func (c *Class) SetAll(value int) error {
	var first error
	for _, led := range c.List() {
		if _, err := c.SetBrightness(led.Name, value); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Get returns one LED as List would.
func (c *Class) Get(name string) (LED, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byKey[name]
	if !ok {
		return LED{}, fmt.Errorf("ledclass: %s: %w", name, ErrNotFound)
	}
	return e.led, nil
}

func (c *Class) Brightness(name string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byKey[name]
	if !ok {
		return 0, fmt.Errorf("ledclass: %s: %w", name, ErrNotFound)
	}
	return e.led.Brightness, nil
}

// List returns all LEDs in registration order.
func (c *Class) List() []LED {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]LED, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.byKey[n].led)
	}
	return out
}
