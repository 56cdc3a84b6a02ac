package ads1115

import (
	"fmt"
	"time"

	"stillheat/internal/i2c"
)

var sleep = time.Sleep

// Minimal ADS1115 driver.
//
// Supports single-shot, single-ended conversions on one of the four inputs.

const (
	addrDefault = 0x48

	regConversion = 0x00
	regConfig     = 0x01

	// Config register fields.
	cfgOSSingle  = 1 << 15 // write: start single conversion; read: 1 = idle
	cfgModeSingl = 1 << 8

	// MUX single-ended AINx = 0b100 + channel, at bits 14:12.
	cfgMuxShift = 12

	// PGA +/-4.096 V (bits 11:9 = 0b001).
	cfgPGA4V = 0x1 << 9

	// 860 SPS (bits 7:5 = 0b111).
	cfgDR860 = 0x7 << 5

	// Comparator disabled (bits 1:0 = 0b11).
	cfgCompDisable = 0x3

	// One conversion at 860 SPS takes ~1.2 ms; poll with margin.
	convPollInterval = 500 * time.Microsecond
	convPollMax      = 16
)

// FullScaleCounts is the positive full-scale reading at the configured PGA.
func FullScaleCounts() int { return 0x7FFF }

// FullScaleVolts is the input voltage corresponding to FullScaleCounts.
func FullScaleVolts() float64 { return 4.096 }

func DefaultAddress() uint16 { return addrDefault }

type regIO interface {
	ReadRegU16(reg byte) (uint16, error)
	WriteRegU16(reg byte, value uint16) error
}

type Device struct {
	dev     regIO
	channel int
}

// New probes the chip and prepares single-shot conversions on the given
// single-ended input channel (0..3).
func New(dev *i2c.Dev, channel int) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("ads1115: dev is nil")
	}
	return newWithIO(dev, channel)
}

func newWithIO(dev regIO, channel int) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("ads1115: dev is nil")
	}
	if channel < 0 || channel > 3 {
		return nil, fmt.Errorf("ads1115: invalid channel %d", channel)
	}
	d := &Device{dev: dev, channel: channel}

	// The ADS1115 has no chip-id register; probe by reading the config
	// register. After reset it is 0x8583, but any successful read proves the
	// device answers at this address.
	if _, err := d.dev.ReadRegU16(regConfig); err != nil {
		return nil, fmt.Errorf("ads1115: probe failed: %w", err)
	}
	return d, nil
}

func (d *Device) configWord() uint16 {
	mux := uint16(0x4+d.channel) << cfgMuxShift
	return cfgOSSingle | mux | cfgPGA4V | cfgModeSingl | cfgDR860 | cfgCompDisable
}

// ReadRaw starts one conversion and returns the signed ADC counts.
func (d *Device) ReadRaw() (int16, error) {
	if err := d.dev.WriteRegU16(regConfig, d.configWord()); err != nil {
		return 0, fmt.Errorf("ads1115: start conversion failed: %w", err)
	}

	// Poll the OS bit until the conversion completes.
	ready := false
	for i := 0; i < convPollMax; i++ {
		sleep(convPollInterval)
		cfg, err := d.dev.ReadRegU16(regConfig)
		if err != nil {
			return 0, fmt.Errorf("ads1115: config read failed: %w", err)
		}
		if cfg&cfgOSSingle != 0 {
			ready = true
			break
		}
	}
	if !ready {
		return 0, fmt.Errorf("ads1115: conversion timed out")
	}

	raw, err := d.dev.ReadRegU16(regConversion)
	if err != nil {
		return 0, fmt.Errorf("ads1115: conversion read failed: %w", err)
	}
	return int16(raw), nil
}
