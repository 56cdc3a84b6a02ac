package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Web      WebConfig      `yaml:"web"`
	Control  ControlConfig  `yaml:"control"`
	Sampling SamplingConfig `yaml:"sampling"`
	LED      LEDConfig      `yaml:"led"`
	Wifi     WifiConfig     `yaml:"wifi"`
	Announce AnnounceConfig `yaml:"announce"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type ControlConfig struct {
	Enable  bool          `yaml:"enable"`
	Pin     int           `yaml:"pin"`
	Backend string        `yaml:"backend"`
	Period  time.Duration `yaml:"period"`
}

type SamplingConfig struct {
	Enable       bool          `yaml:"enable"`
	I2CBus       int           `yaml:"i2c_bus"`
	ADCAddr      uint16        `yaml:"adc_addr"`
	Channel      int           `yaml:"channel"`
	BatchSize    int           `yaml:"batch_size"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	BatchDelay   time.Duration `yaml:"batch_delay"`

	Calibration CalibrationConfig `yaml:"calibration"`
}

type CalibrationConfig struct {
	ADCMax     float64 `yaml:"adc_max"`
	VRef       float64 `yaml:"vref"`
	VZero      float64 `yaml:"vzero"`
	SenseVPerA float64 `yaml:"sense_v_per_a"`
}

type LEDConfig struct {
	Enable bool   `yaml:"enable"`
	Spidev string `yaml:"spidev"`
}

type WifiConfig struct {
	Enable bool   `yaml:"enable"`
	SSID   string `yaml:"ssid"`
	PSK    string `yaml:"psk"`
}

type AnnounceConfig struct {
	Enable   bool   `yaml:"enable"`
	Instance string `yaml:"instance"`
	Service  string `yaml:"service"`
	Port     int    `yaml:"port"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":80"
	}

	if cfg.Control.Pin == 0 {
		cfg.Control.Pin = 17
	}
	if cfg.Control.Pin < 0 {
		return fmt.Errorf("control.pin must be a BCM GPIO number")
	}
	switch cfg.Control.Backend {
	case "", "gpiod", "rpio":
	default:
		return fmt.Errorf("control.backend must be 'gpiod' or 'rpio'")
	}
	if cfg.Control.Period == 0 {
		cfg.Control.Period = 100 * time.Millisecond
	}
	if cfg.Control.Period < 10*time.Millisecond || cfg.Control.Period > 10*time.Second {
		return fmt.Errorf("control.period must be between 10ms and 10s")
	}

	if cfg.Sampling.I2CBus == 0 {
		cfg.Sampling.I2CBus = 1
	}
	if cfg.Sampling.I2CBus < 0 {
		return fmt.Errorf("sampling.i2c_bus must be >= 0")
	}
	if cfg.Sampling.ADCAddr == 0 {
		cfg.Sampling.ADCAddr = 0x48
	}
	if cfg.Sampling.ADCAddr > 0x7F {
		return fmt.Errorf("sampling.adc_addr must be a 7-bit i2c address")
	}
	if cfg.Sampling.Channel < 0 || cfg.Sampling.Channel > 3 {
		return fmt.Errorf("sampling.channel must be 0..3")
	}
	if cfg.Sampling.BatchSize == 0 {
		cfg.Sampling.BatchSize = 100
	}
	if cfg.Sampling.BatchSize < 2 {
		return fmt.Errorf("sampling.batch_size must be >= 2")
	}
	if cfg.Sampling.RetryBackoff == 0 {
		cfg.Sampling.RetryBackoff = 10 * time.Millisecond
	}
	if cfg.Sampling.RetryBackoff < 0 {
		return fmt.Errorf("sampling.retry_backoff must be positive")
	}
	if cfg.Sampling.BatchDelay == 0 {
		cfg.Sampling.BatchDelay = 10 * time.Millisecond
	}
	if cfg.Sampling.BatchDelay < 0 {
		return fmt.Errorf("sampling.batch_delay must be positive")
	}

	// Calibration defaults match a 30 A ACS712 on the ADS1115's 4.096 V range.
	if cfg.Sampling.Calibration.ADCMax == 0 {
		cfg.Sampling.Calibration.ADCMax = 32767
	}
	if cfg.Sampling.Calibration.VRef == 0 {
		cfg.Sampling.Calibration.VRef = 4.096
	}
	if cfg.Sampling.Calibration.VZero == 0 {
		cfg.Sampling.Calibration.VZero = 2.5
	}
	if cfg.Sampling.Calibration.SenseVPerA == 0 {
		cfg.Sampling.Calibration.SenseVPerA = 0.066
	}
	if cfg.Sampling.Calibration.ADCMax <= 0 || cfg.Sampling.Calibration.VRef <= 0 {
		return fmt.Errorf("sampling.calibration adc_max/vref must be positive")
	}
	if cfg.Sampling.Calibration.SenseVPerA <= 0 {
		return fmt.Errorf("sampling.calibration.sense_v_per_a must be positive")
	}

	if cfg.LED.Spidev == "" {
		cfg.LED.Spidev = "/dev/spidev0.0"
	}

	if cfg.Wifi.Enable && cfg.Wifi.SSID == "" {
		return fmt.Errorf("wifi.ssid is required when wifi.enable is true")
	}

	if cfg.Announce.Port == 0 {
		cfg.Announce.Port = 80
	}
	if cfg.Announce.Port < 0 || cfg.Announce.Port > 65535 {
		return fmt.Errorf("announce.port must be a TCP port")
	}

	return nil
}
