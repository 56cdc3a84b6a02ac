package actuator

import "fmt"

// switchDriver is the minimal interface the actuator loop needs from an SSR
// backend. The relay is a slow binary switch; there is no duty or frequency
// at this level, only on/off.
//
// Close should be best-effort and leave the output low.
type switchDriver interface {
	Set(on bool) error
	Close() error
}

func openSwitch(cfg Config) (switchDriver, error) {
	switch cfg.Backend {
	case "", "gpiod":
		return openGPIOD(cfg.Pin)
	case "rpio":
		return openRPIO(cfg.Pin)
	default:
		return nil, fmt.Errorf("actuator: unknown backend %q", cfg.Backend)
	}
}
