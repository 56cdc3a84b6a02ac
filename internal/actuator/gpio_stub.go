//go:build !linux || (!arm && !arm64)

package actuator

import "fmt"

// Stub implementations for non-Linux and/or non-ARM platforms.

func openGPIOD(pin int) (switchDriver, error) {
	return nil, fmt.Errorf("actuator: gpio unsupported on this platform")
}

func openRPIO(pin int) (switchDriver, error) {
	return nil, fmt.Errorf("actuator: rpio unsupported on this platform")
}
