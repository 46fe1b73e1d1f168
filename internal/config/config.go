package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/tlc5940/internal/tlc5940"
)

type Device struct {
	Channels     int      `yaml:"channels"` // 0: len(names), else 16
	NamePrefix   string   `yaml:"name_prefix"`
	Names        []string `yaml:"names,omitempty"` // overrides name_prefix when set
	GSCLK        string   `yaml:"gsclk"`           // e.g. "2.5MHz"
	StartDelayMs int      `yaml:"start_delay_ms"`
	InputBits    int      `yaml:"input_bits"`
}

type SPI struct {
	Dev   string `yaml:"dev"`   // spireg name, "" for the first port
	Speed string `yaml:"speed"` // e.g. "1MHz"
}

type Blank struct {
	Driver string `yaml:"driver"` // "periph" | "gpiod" | "sim"
	Pin    string `yaml:"pin"`    // periph pin name, e.g. GPIO25
	Chip   string `yaml:"chip"`   // gpiod chip, e.g. gpiochip0
	Line   int    `yaml:"line"`   // gpiod line offset
}

type GSCLK struct {
	Driver  string `yaml:"driver"` // "periph" | "sysfs" | "sim" | "none"
	Pin     string `yaml:"pin"`
	Chip    string `yaml:"chip"` // sysfs pwmchip, e.g. pwmchip0
	Channel int    `yaml:"channel"`
}

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Mirror struct {
	Endpoint   string `yaml:"endpoint"` // host:port, empty disables
	UnitID     uint8  `yaml:"unit_id"`
	Address    uint16 `yaml:"address"`
	IntervalMs int    `yaml:"interval_ms"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

type Patterns struct {
	StepMs int `yaml:"step_ms"`
}

type Log struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

type Config struct {
	Driver  string `yaml:"driver"`  // "hw" | "sim"
	Preview bool   `yaml:"preview"` // sim only: draw channels on the console

	Device   Device   `yaml:"device"`
	SPI      SPI      `yaml:"spi"`
	Blank    Blank    `yaml:"blank"`
	GSCLK    GSCLK    `yaml:"gsclk"`
	HTTP     HTTP     `yaml:"http"`
	Mirror   Mirror   `yaml:"mirror,omitempty"`
	Patterns Patterns `yaml:"patterns"`
	Log      Log      `yaml:"log"`
}

// Default is one simulated chip. The pin defaults match a Raspberry Pi
// wiring for when driver is switched to hw.
func Default() Config {
	return Config{
		Driver: "sim",
		Device: Device{
			NamePrefix:   "tlc5940",
			GSCLK:        "2.5MHz",
			StartDelayMs: int(tlc5940.DefaultStartDelay / time.Millisecond),
			InputBits:    tlc5940.GSBits,
		},
		SPI:      SPI{Speed: "1MHz"},
		Blank:    Blank{Driver: "periph", Pin: "GPIO25", Chip: "gpiochip0", Line: 25},
		GSCLK:    GSCLK{Driver: "periph", Pin: "GPIO18", Chip: "pwmchip0"},
		HTTP:     HTTP{Addr: ":8080"},
		Mirror:   Mirror{UnitID: 1, IntervalMs: 1000, TimeoutMs: 500},
		Patterns: Patterns{StepMs: 250},
		Log:      Log{Level: "info", Console: true},
	}
}

// Load reads path over Default, so omitted keys keep their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// ParseFrequency accepts the periph notation: "2.5MHz", "400kHz".
func ParseFrequency(s string) (physic.Frequency, error) {
	var f physic.Frequency
	if err := f.Set(s); err != nil {
		return 0, err
	}
	return f, nil
}

// ChannelNames returns the configured names, or prefix-i for every channel.
func (c *Config) ChannelNames() []string {
	if len(c.Device.Names) > 0 {
		return append([]string(nil), c.Device.Names...)
	}
	return tlc5940.ChannelNames(c.Device.NamePrefix, c.Device.Channels)
}

// DeviceConfig converts the device section. Call Validate first.
func (c *Config) DeviceConfig() (tlc5940.Config, error) {
	f, err := ParseFrequency(c.Device.GSCLK)
	if err != nil {
		return tlc5940.Config{}, err
	}
	return tlc5940.Config{
		Names:      c.ChannelNames(),
		Timing:     tlc5940.Timing{GSCLK: f},
		StartDelay: time.Duration(c.Device.StartDelayMs) * time.Millisecond,
		InputBits:  c.Device.InputBits,
	}, nil
}

// SPISpeed returns the parsed spi.speed.
func (c *Config) SPISpeed() (physic.Frequency, error) {
	return ParseFrequency(c.SPI.Speed)
}

func (m Mirror) Enabled() bool { return m.Endpoint != "" }

func (m Mirror) Interval() time.Duration { return time.Duration(m.IntervalMs) * time.Millisecond }

func (m Mirror) Timeout() time.Duration { return time.Duration(m.TimeoutMs) * time.Millisecond }

func (p Patterns) Step() time.Duration { return time.Duration(p.StepMs) * time.Millisecond }
