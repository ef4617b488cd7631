package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"

	"p506log/pkg/csvlog"
)

// Config holds the application configuration.
// Values come from the optional yaml config file; command line flags
// override the corresponding fields afterwards (see LoadConfig).
type Config struct {
	// Port is the manual serial port override. Empty means auto-detection.
	Port string `yaml:"port"`
	// DataFile is the csv log target.
	DataFile string `yaml:"datafile"`
	// DelaySec is the polling interval in seconds.
	DelaySec float64       `yaml:"delay"`
	Delay    time.Duration `yaml:"-"`
	// TimeoutSec bounds one frame read in seconds.
	TimeoutSec float64       `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`

	Flag      FlagConfig      `yaml:"-"`
	Debug     DebugConfig     `yaml:"debug"`
	Webserver WebserverConfig `yaml:"webserver"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	ConfigFile string
	LogLevel   string
	Port       string
	File       string
	Delay      float64
}

// WebserverConfig defines the struct of the webserver and webservice configuration
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration
type MQTTConfig struct {
	Connection string `yaml:"connection"`
	Topic      string `yaml:"topic"`
}

// DebugConfig defines the struct of the debug configuration
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

func NewConfig() *Config {
	return &Config{
		DataFile:   csvlog.DefaultFile,
		DelaySec:   0.2,
		TimeoutSec: 1.0,
		Flag:       FlagConfig{},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"data":    true,
			},
		},
		MQTT: MQTTConfig{
			Connection: "",
			Topic:      "protek506/reading",
		},
	}
}

func (c *Config) LoadConfig() error {
	if c.Flag.ConfigFile != "" {
		if err := c.readConfigFile(); err != nil {
			return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
		}
	}

	if c.Flag.Port != "" {
		c.Port = c.Flag.Port
	}
	if c.Flag.File != "" {
		c.DataFile = c.Flag.File
	}
	if c.Flag.Delay != 0 {
		c.DelaySec = c.Flag.Delay
	}
	if c.Flag.LogLevel != "" {
		c.Debug.FlagString = c.Flag.LogLevel
	}

	if c.DelaySec <= 0 {
		return fmt.Errorf("delay must be a positive number, got %v", c.DelaySec)
	}
	if c.TimeoutSec <= 0 {
		return fmt.Errorf("timeout must be a positive number, got %v", c.TimeoutSec)
	}

	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	c.Delay = time.Duration(c.DelaySec * float64(time.Second))
	c.Timeout = time.Duration(c.TimeoutSec * float64(time.Second))

	return nil
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
