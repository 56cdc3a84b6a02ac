package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stillheat/internal/actuator"
	"stillheat/internal/announce"
	"stillheat/internal/config"
	"stillheat/internal/controlstate"
	"stillheat/internal/led"
	"stillheat/internal/sampler"
	"stillheat/internal/web"
	"stillheat/internal/wifi"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("stillheat starting")

	store := controlstate.NewStore()

	// Optional: status LED. The controller runs fine without it.
	var pixel *led.Pixel
	if cfg.LED.Enable {
		p, err := led.Open(cfg.LED.Spidev)
		if err != nil {
			log.Printf("led init failed: %v", err)
		} else {
			pixel = p
			defer pixel.Close()
			_ = pixel.SetColor(led.Color{G: 16})
		}
	}

	// Optional: join an existing wifi network before exposing the control
	// surface. Connect failures are logged, not fatal; the wired interface
	// may still be reachable.
	if cfg.Wifi.Enable {
		if err := wifi.Connect(cfg.Wifi.SSID, cfg.Wifi.PSK); err != nil {
			log.Printf("wifi connect failed: %v", err)
		} else if ip, err := wifi.WaitOnline("wlan0", 30*time.Second); err != nil {
			log.Printf("wifi address wait failed: %v", err)
		} else {
			log.Printf("wifi online ssid=%s ip=%s", cfg.Wifi.SSID, ip)
		}
	}

	// RMS current sampling.
	samplerSvc := sampler.New(sampler.Config{
		Enable:       cfg.Sampling.Enable,
		I2CBus:       cfg.Sampling.I2CBus,
		ADCAddr:      cfg.Sampling.ADCAddr,
		Channel:      cfg.Sampling.Channel,
		BatchSize:    cfg.Sampling.BatchSize,
		RetryBackoff: cfg.Sampling.RetryBackoff,
		BatchDelay:   cfg.Sampling.BatchDelay,
		ADCMax:       cfg.Sampling.Calibration.ADCMax,
		VRef:         cfg.Sampling.Calibration.VRef,
		VZero:        cfg.Sampling.Calibration.VZero,
		SenseVPerA:   cfg.Sampling.Calibration.SenseVPerA,
	}, store)
	if err := samplerSvc.Start(ctx); err != nil {
		// Keep running so the operator can still reach /api/status.
		log.Printf("sampler init failed: %v", err)
	}
	defer samplerSvc.Close()

	// Heater output.
	actuatorSvc := actuator.New(actuator.Config{
		Enable:  cfg.Control.Enable,
		Pin:     cfg.Control.Pin,
		Backend: cfg.Control.Backend,
		Period:  cfg.Control.Period,
	}, store)
	if err := actuatorSvc.Start(ctx); err != nil {
		log.Printf("actuator init failed: %v", err)
	}
	defer actuatorSvc.Close()

	// mDNS announcement of the control surface.
	ann, err := announce.Start(announce.Config{
		Enable:   cfg.Announce.Enable,
		Instance: cfg.Announce.Instance,
		Service:  cfg.Announce.Service,
		Port:     cfg.Announce.Port,
	})
	if err != nil {
		log.Printf("announce init failed: %v", err)
	} else {
		defer ann.Close()
	}

	src := web.Sources{
		Store:    store,
		Sampler:  samplerSvc.Snapshot,
		Actuator: actuatorSvc.Snapshot,
		Wifi:     wifi.GetStatus,
	}
	if pixel != nil {
		src.Pixel = pixel
	}

	log.Printf("web listening on %s", cfg.Web.Listen)
	if err := web.Serve(ctx, cfg.Web.Listen, src); err != nil && ctx.Err() == nil {
		log.Printf("web server stopped: %v", err)
	}
	log.Printf("stillheat stopping")
}
