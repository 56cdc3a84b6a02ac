// Package led drives the board's status NeoPixel. It is unrelated to the
// heater control loop; the pixel is only set at startup and from the color
// demo endpoint.
package led

import "fmt"

type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// pixelDriver is the minimal interface the color endpoint needs.
type pixelDriver interface {
	SetColor(c Color) error
	Close() error
}

var openPixelFn = openPixel

// Pixel wraps a single WS2812 pixel behind a platform backend.
type Pixel struct {
	drv pixelDriver
}

func Open(devPath string) (*Pixel, error) {
	drv, err := openPixelFn(devPath)
	if err != nil {
		return nil, err
	}
	return &Pixel{drv: drv}, nil
}

func (p *Pixel) SetColor(c Color) error {
	if p == nil || p.drv == nil {
		return fmt.Errorf("led: pixel not initialized")
	}
	return p.drv.SetColor(c)
}

func (p *Pixel) Close() error {
	if p == nil || p.drv == nil {
		return nil
	}
	err := p.drv.Close()
	p.drv = nil
	return err
}

// WS2812 timing over SPI: the bus runs at 2.4 MHz so every WS2812 bit maps to
// a 3-bit SPI symbol (one symbol slot is ~417 ns).
//
//	1 -> 110
//	0 -> 100
//
// A pixel is 24 bits in GRB order, MSB first, so one pixel is 9 SPI bytes.
// The trailing zero bytes hold the line low past the 50 us latch time.
const (
	symbolsPerPixel = 9
	latchBytes      = 16
)

func encodeFrame(c Color) []byte {
	buf := make([]byte, 0, symbolsPerPixel+latchBytes)

	var bits uint32 // 72 symbol bits streamed MSB-first, 8 at a time
	nbits := 0
	for _, channel := range [3]uint8{c.G, c.R, c.B} {
		for i := 7; i >= 0; i-- {
			sym := uint32(0b100)
			if channel&(1<<i) != 0 {
				sym = 0b110
			}
			bits = bits<<3 | sym
			nbits += 3
			for nbits >= 8 {
				buf = append(buf, byte(bits>>(nbits-8)))
				nbits -= 8
			}
		}
	}
	// 72 symbol bits divide evenly into 9 bytes; nothing left over.
	buf = append(buf, make([]byte, latchBytes)...)
	return buf
}
