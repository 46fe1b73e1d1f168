package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/tlc5940/internal/tlc5940"
)

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tlc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
driver: hw
device:
  channels: 32
  gsclk: 5MHz
blank:
  driver: gpiod
  line: 17
`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hw", c.Driver)
	assert.Equal(t, 32, c.Device.Channels)
	assert.Equal(t, "tlc5940", c.Device.NamePrefix)
	assert.Equal(t, "gpiod", c.Blank.Driver)
	assert.Equal(t, "gpiochip0", c.Blank.Chip)
	assert.Equal(t, 17, c.Blank.Line)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	require.NoError(t, Validate(c))

	dc, err := c.DeviceConfig()
	require.NoError(t, err)
	assert.Len(t, dc.Names, 32)
	assert.Equal(t, "tlc5940-31", dc.Names[31])
	assert.Equal(t, 200*time.Nanosecond, dc.Timing.GSCLKPeriod())
	assert.Equal(t, time.Second, dc.StartDelay)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tlc.yaml")
	c := Default()
	c.Device.Names = []string{"red", "green"}
	c.Mirror.Endpoint = "127.0.0.1:502"
	require.NoError(t, Save(path, &c))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, *got)
}

func TestLoadNamesSetChannelCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tlc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
device:
  names: [r0, g0, b0, r1, g1, b1, w0, w1]
`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(c))
	Normalize(c)
	assert.Equal(t, 8, c.Device.Channels)

	dc, err := c.DeviceConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"r0", "g0", "b0", "r1", "g1", "b1", "w0", "w1"}, dc.Names)
}

func TestNormalizeDefaultChannels(t *testing.T) {
	c := Default()
	require.NoError(t, Validate(&c))
	Normalize(&c)
	assert.Equal(t, tlc5940.DefaultChannels, c.Device.Channels)
	assert.Len(t, c.ChannelNames(), tlc5940.DefaultChannels)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"default", func(c *Config) {}, true},
		{"bad driver", func(c *Config) { c.Driver = "pwm" }, false},
		{"odd channels", func(c *Config) { c.Device.Channels = 15 }, false},
		{"negative channels", func(c *Config) { c.Device.Channels = -2 }, false},
		{"zero channels defaults", func(c *Config) { c.Device.Channels = 0 }, true},
		{"names set count", func(c *Config) { c.Device.Channels = 0; c.Device.Names = []string{"a", "b"} }, true},
		{"names mismatch", func(c *Config) { c.Device.Channels = 4; c.Device.Names = []string{"a", "b"} }, false},
		{"duplicate names", func(c *Config) { c.Device.Channels = 2; c.Device.Names = []string{"a", "a"} }, false},
		{"gsclk garbage", func(c *Config) { c.Device.GSCLK = "fast" }, false},
		{"gsclk too fast", func(c *Config) { c.Device.GSCLK = "40MHz" }, false},
		{"spi too fast", func(c *Config) { c.SPI.Speed = "31MHz" }, false},
		{"input bits", func(c *Config) { c.Device.InputBits = 17 }, false},
		{"hw bad blank", func(c *Config) { c.Driver = "hw"; c.Blank.Driver = "sysfs" }, false},
		{"hw periph no pin", func(c *Config) { c.Driver = "hw"; c.Blank.Pin = "" }, false},
		{"hw no gsclk", func(c *Config) { c.Driver = "hw"; c.GSCLK.Driver = "none" }, true},
		{"mirror interval", func(c *Config) { c.Mirror.Endpoint = "x:502"; c.Mirror.IntervalMs = 0 }, false},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(&c)
			err := Validate(&c)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	c := Default()
	c.Device.Channels = 0
	c.Device.Names = []string{"a", "b", "c", "d"}
	c.Device.InputBits = 0
	require.NoError(t, Validate(&c))
	Normalize(&c)

	assert.Equal(t, 4, c.Device.Channels)
	assert.Equal(t, tlc5940.GSBits, c.Device.InputBits)
	assert.Equal(t, "sim", c.Blank.Driver)
	assert.Equal(t, "sim", c.GSCLK.Driver)
	assert.Equal(t, []string{"a", "b", "c", "d"}, c.ChannelNames())

	Normalize(nil)
}
