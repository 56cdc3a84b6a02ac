package announce

import (
	"errors"
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestDefaults(t *testing.T) {
	cfg := defaults(Config{})
	if cfg.Instance == "" || cfg.Service != "_http._tcp" || cfg.Port != 80 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if len(cfg.Text) == 0 {
		t.Fatalf("expected a TXT record default")
	}

	// Explicit values survive.
	cfg = defaults(Config{Instance: "x", Service: "_stillheat._tcp", Port: 8080, Text: []string{"a=b"}})
	if cfg.Instance != "x" || cfg.Service != "_stillheat._tcp" || cfg.Port != 8080 || cfg.Text[0] != "a=b" {
		t.Fatalf("explicit config overridden: %+v", cfg)
	}
}

func TestStartDisabledIsInert(t *testing.T) {
	called := false
	oldRegister := registerFn
	registerFn = func(string, string, string, int, []string, []net.Interface) (*zeroconf.Server, error) {
		called = true
		return nil, errors.New("should not register")
	}
	t.Cleanup(func() { registerFn = oldRegister })

	a, err := Start(Config{Enable: false})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if called {
		t.Fatalf("disabled announcer still registered")
	}
	a.Close() // must be safe on the inert announcer
}

func TestStartRejectsInvalidPort(t *testing.T) {
	oldRegister := registerFn
	registerFn = func(string, string, string, int, []string, []net.Interface) (*zeroconf.Server, error) {
		return nil, errors.New("unreachable")
	}
	t.Cleanup(func() { registerFn = oldRegister })

	if _, err := Start(Config{Enable: true, Port: -2}); err == nil {
		t.Fatalf("expected invalid port error")
	}
}
