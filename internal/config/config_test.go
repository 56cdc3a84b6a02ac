package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "control:\n  enable: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Web.Listen != ":80" {
		t.Fatalf("listen=%q want :80", cfg.Web.Listen)
	}
	if cfg.Control.Pin != 17 {
		t.Fatalf("pin=%d want 17", cfg.Control.Pin)
	}
	if cfg.Control.Period != 100*time.Millisecond {
		t.Fatalf("period=%s want 100ms", cfg.Control.Period)
	}
	if cfg.Sampling.I2CBus != 1 || cfg.Sampling.ADCAddr != 0x48 {
		t.Fatalf("i2c defaults not applied: bus=%d addr=%#x", cfg.Sampling.I2CBus, cfg.Sampling.ADCAddr)
	}
	if cfg.Sampling.BatchSize != 100 {
		t.Fatalf("batch_size=%d want 100", cfg.Sampling.BatchSize)
	}
	if cfg.Sampling.RetryBackoff != 10*time.Millisecond || cfg.Sampling.BatchDelay != 10*time.Millisecond {
		t.Fatalf("timing defaults not applied")
	}
	cal := cfg.Sampling.Calibration
	if cal.ADCMax != 32767 || cal.VRef != 4.096 || cal.VZero != 2.5 || cal.SenseVPerA != 0.066 {
		t.Fatalf("calibration defaults not applied: %+v", cal)
	}
	if cfg.LED.Spidev != "/dev/spidev0.0" {
		t.Fatalf("spidev=%q want /dev/spidev0.0", cfg.LED.Spidev)
	}
	if cfg.Announce.Port != 80 {
		t.Fatalf("announce.port=%d want 80", cfg.Announce.Port)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "NegativePin",
			body: "control:\n  pin: -3\n",
			want: "control.pin must be a BCM GPIO number",
		},
		{
			name: "UnknownBackend",
			body: "control:\n  backend: sysfs\n",
			want: "control.backend must be 'gpiod' or 'rpio'",
		},
		{
			name: "PeriodTooShort",
			body: "control:\n  period: 1ms\n",
			want: "control.period must be between 10ms and 10s",
		},
		{
			name: "PeriodTooLong",
			body: "control:\n  period: 1m\n",
			want: "control.period must be between 10ms and 10s",
		},
		{
			name: "BadADCAddr",
			body: "sampling:\n  adc_addr: 0x90\n",
			want: "sampling.adc_addr must be a 7-bit i2c address",
		},
		{
			name: "BadChannel",
			body: "sampling:\n  channel: 4\n",
			want: "sampling.channel must be 0..3",
		},
		{
			name: "BatchTooSmall",
			body: "sampling:\n  batch_size: 1\n",
			want: "sampling.batch_size must be >= 2",
		},
		{
			name: "NegativeBackoff",
			body: "sampling:\n  retry_backoff: -1s\n",
			want: "sampling.retry_backoff must be positive",
		},
		{
			name: "WifiNeedsSSID",
			body: "wifi:\n  enable: true\n",
			want: "wifi.ssid is required when wifi.enable is true",
		},
		{
			name: "BadAnnouncePort",
			body: "announce:\n  port: 70000\n",
			want: "announce.port must be a TCP port",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, tc.body)
			_, err := Load(path)
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_ExplicitValuesKept(t *testing.T) {
	body := "web:\n  listen: ':8080'\ncontrol:\n  pin: 27\n  backend: rpio\n  period: 200ms\nsampling:\n  calibration:\n    vzero: 1.65\n"
	path := writeTempConfig(t, body)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Web.Listen != ":8080" {
		t.Fatalf("listen=%q want :8080", cfg.Web.Listen)
	}
	if cfg.Control.Pin != 27 || cfg.Control.Backend != "rpio" || cfg.Control.Period != 200*time.Millisecond {
		t.Fatalf("control values not kept: %+v", cfg.Control)
	}
	if cfg.Sampling.Calibration.VZero != 1.65 {
		t.Fatalf("vzero=%v want 1.65", cfg.Sampling.Calibration.VZero)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
