//go:build linux && (arm || arm64)

package actuator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// openGPIOD drives the given BCM GPIO as a digital output using the Linux
// GPIO character device (libgpiod). This is the default backend: it works on
// Pi 5 kernels where memory-mapped GPIO libraries break.
func openGPIOD(pin int) (switchDriver, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("actuator: invalid gpio pin %d", pin)
	}

	// On Pi, line names are commonly "GPIO17", etc.
	lineName := fmt.Sprintf("GPIO%d", pin)

	// Try likely chips first (Pi 5 kernel variants can expose header GPIOs on
	// gpiochip0 and sometimes additional chips exist).
	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", name))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("stillheat-ssr"))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpiodSwitch{chip: chip, line: line}, nil
	}

	return nil, fmt.Errorf("actuator: gpio line %q not found (or busy)", lineName)
}

type gpiodSwitch struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpiodSwitch) Set(on bool) error {
	if g == nil || g.line == nil {
		return fmt.Errorf("actuator: gpio driver not initialized")
	}
	v := 0
	if on {
		v = 1
	}
	return g.line.SetValue(v)
}

func (g *gpiodSwitch) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	// Graceful shutdown: heater OFF.
	_ = g.line.SetValue(0)
	err1 := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err1
}
