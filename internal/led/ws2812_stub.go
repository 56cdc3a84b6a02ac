//go:build !linux

package led

import "fmt"

func openPixel(devPath string) (pixelDriver, error) {
	return nil, fmt.Errorf("led: spidev unsupported on this platform")
}
