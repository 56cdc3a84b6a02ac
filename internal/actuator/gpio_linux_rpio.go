//go:build linux && (arm || arm64)

package actuator

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// openRPIO drives the SSR through /dev/gpiomem (BCM283x memory-mapped GPIO).
// Kept for Pi 3/4 installs that predate the character-device backend; broken
// on Pi 5.
func openRPIO(pin int) (switchDriver, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("actuator: invalid gpio pin %d", pin)
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("actuator: rpio open: %w", err)
	}
	p := rpio.Pin(pin)
	p.Output()
	p.Low()
	return &rpioSwitch{pin: p}, nil
}

type rpioSwitch struct {
	pin    rpio.Pin
	closed bool
}

func (r *rpioSwitch) Set(on bool) error {
	if r == nil || r.closed {
		return fmt.Errorf("actuator: rpio driver not initialized")
	}
	if on {
		r.pin.High()
	} else {
		r.pin.Low()
	}
	return nil
}

func (r *rpioSwitch) Close() error {
	if r == nil || r.closed {
		return nil
	}
	r.pin.Low()
	r.closed = true
	return rpio.Close()
}
