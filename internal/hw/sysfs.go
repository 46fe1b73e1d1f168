package hw

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const pwmRoot = "/sys/class/pwm"

// SysfsClock generates GSCLK with a kernel PWM channel under
// /sys/class/pwm/<chip>/pwm<channel>.
type SysfsClock struct {
	root    string
	chip    string
	channel int

	mu       sync.Mutex
	exported bool
	enabled  bool
}

func NewSysfsClock(chip string, channel int) *SysfsClock {
	return &SysfsClock{root: pwmRoot, chip: chip, channel: channel}
}

func (c *SysfsClock) chipFile(name string) string {
	return filepath.Join(c.root, c.chip, name)
}

func (c *SysfsClock) lineFile(name string) string {
	return filepath.Join(c.root, c.chip, "pwm"+strconv.Itoa(c.channel), name)
}

func writeValue(path string, v int64) error {
	if err := os.WriteFile(path, []byte(strconv.FormatInt(v, 10)), 0644); err != nil {
		return fmt.Errorf("pwm sysfs: %w", err)
	}
	return nil
}

func (c *SysfsClock) export() error {
	if c.exported {
		return nil
	}
	if _, err := os.Stat(c.lineFile("")); err != nil {
		if err := writeValue(c.chipFile("export"), int64(c.channel)); err != nil {
			return err
		}
		// udev needs a moment to fix permissions on the new directory.
		time.Sleep(100 * time.Millisecond)
	}
	c.exported = true
	return nil
}

// Configure sets period and duty with the output disabled. duty_cycle is
// zeroed first because the kernel rejects a period shorter than the
// current duty.
func (c *SysfsClock) Configure(dutyNs, periodNs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if periodNs <= 0 || dutyNs < 0 || dutyNs > periodNs {
		return fmt.Errorf("pwm: bad duty %dns / period %dns", dutyNs, periodNs)
	}
	if err := c.export(); err != nil {
		return err
	}
	if err := writeValue(c.lineFile("enable"), 0); err != nil {
		return err
	}
	c.enabled = false
	if err := writeValue(c.lineFile("duty_cycle"), 0); err != nil {
		return err
	}
	if err := writeValue(c.lineFile("period"), periodNs); err != nil {
		return err
	}
	return writeValue(c.lineFile("duty_cycle"), dutyNs)
}

func (c *SysfsClock) Enable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.exported {
		return fmt.Errorf("pwm %s/%d: not configured", c.chip, c.channel)
	}
	if err := writeValue(c.lineFile("enable"), 1); err != nil {
		return err
	}
	c.enabled = true
	return nil
}

func (c *SysfsClock) Disable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return nil
	}
	c.enabled = false
	return writeValue(c.lineFile("enable"), 0)
}

// Close disables and unexports the channel.
func (c *SysfsClock) Close() error {
	if err := c.Disable(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.exported {
		return nil
	}
	c.exported = false
	return writeValue(c.chipFile("unexport"), int64(c.channel))
}
