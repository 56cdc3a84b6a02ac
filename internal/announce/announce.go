// Package announce advertises the HTTP control surface over mDNS so clients
// can find the controller without knowing its DHCP address.
package announce

import (
	"fmt"

	"github.com/grandcat/zeroconf"
)

var registerFn = zeroconf.Register

type Config struct {
	Enable bool

	// Instance is the human-readable service instance name.
	Instance string
	// Service is the DNS-SD service type.
	Service string
	// Port is the advertised TCP port of the control surface.
	Port int
	// Text entries are published in the TXT record.
	Text []string
}

func defaults(cfg Config) Config {
	if cfg.Instance == "" {
		cfg.Instance = "Stillheat Controller"
	}
	if cfg.Service == "" {
		cfg.Service = "_http._tcp"
	}
	if cfg.Port == 0 {
		cfg.Port = 80
	}
	if len(cfg.Text) == 0 {
		cfg.Text = []string{"path=/power"}
	}
	return cfg
}

type Announcer struct {
	srv *zeroconf.Server
}

// Start registers the service on all multicast-capable interfaces. The
// registration lives until Close.
func Start(cfg Config) (*Announcer, error) {
	if !cfg.Enable {
		return &Announcer{}, nil
	}
	cfg = defaults(cfg)
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("announce: invalid port %d", cfg.Port)
	}

	srv, err := registerFn(cfg.Instance, cfg.Service, "local.", cfg.Port, cfg.Text, nil)
	if err != nil {
		return nil, fmt.Errorf("announce: register: %w", err)
	}
	return &Announcer{srv: srv}, nil
}

func (a *Announcer) Close() {
	if a == nil || a.srv == nil {
		return
	}
	a.srv.Shutdown()
	a.srv = nil
}
