package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"dotsnatch-go/internal/detect"
	"dotsnatch-go/internal/zone"
)

type AppConfig struct {
	Port           int
	Source         string
	DevicePath     string
	Endpoint       string
	Width          int
	Height         int
	Encoding       string
	AcquireTimeout time.Duration
	SimRate        float64
	Workers        int
	PublishAddr    string
	UIRate         time.Duration
	PreviewWidth   int
	PreviewRate    time.Duration
	OutputDir      string
	SeriesEvery    int
	RawLogEnabled  bool
	RawLogDir      string
	LogEvery       int
	ConfigPath     string
	SavePath       string
}

// FileConfig is the optional YAML file. Missing sections keep their defaults.
type FileConfig struct {
	Device struct {
		Source   string `yaml:"source"`
		Path     string `yaml:"path"`
		Endpoint string `yaml:"endpoint"`
		Width    int    `yaml:"width"`
		Height   int    `yaml:"height"`
		Encoding string `yaml:"encoding"`
	} `yaml:"device"`
	Params *detect.Params `yaml:"params"`
	Zones  []zone.Zone    `yaml:"zones"`
}

// Load reads path on top of defaults. Params left out of the file keep the
// value from defaults.
func Load(path string, defaults detect.Params) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	params := defaults
	fc.Params = &params
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	if fc.Params == nil {
		fc.Params = &params
	}
	clamped := fc.Params.Clamped()
	fc.Params = &clamped
	return fc, nil
}

// Apply overlays file device settings where the flag was left at its zero value.
func (c *AppConfig) Apply(fc FileConfig) {
	if fc.Device.Source != "" && c.Source == "" {
		c.Source = fc.Device.Source
	}
	if fc.Device.Path != "" && c.DevicePath == "" {
		c.DevicePath = fc.Device.Path
	}
	if fc.Device.Endpoint != "" && c.Endpoint == "" {
		c.Endpoint = fc.Device.Endpoint
	}
	if fc.Device.Width > 0 && c.Width == 0 {
		c.Width = fc.Device.Width
	}
	if fc.Device.Height > 0 && c.Height == 0 {
		c.Height = fc.Device.Height
	}
	if fc.Device.Encoding != "" && c.Encoding == "" {
		c.Encoding = fc.Device.Encoding
	}
}

// Save writes params and zones back out, for persisting a tuned session.
func Save(path string, params detect.Params, zones []zone.Zone) error {
	fc := FileConfig{Params: &params, Zones: zones}
	data, err := yaml.Marshal(&fc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// FillDefaults sets device settings still unset after flags and file.
func (c *AppConfig) FillDefaults() {
	if c.Source == "" {
		c.Source = "sim"
	}
	if c.Width == 0 {
		c.Width = 640
	}
	if c.Height == 0 {
		c.Height = 480
	}
	if c.Encoding == "" {
		c.Encoding = "yuyv"
	}
}
