package actuator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

var openSwitchFn = openSwitch
var afterFn = time.After

type Config struct {
	Enable bool

	// Pin is the SSR control line, BCM GPIO numbering.
	Pin int
	// Backend selects the GPIO backend: "gpiod" (default) or "rpio".
	Backend string
	// Period is the time-proportioning window. The duty split is committed at
	// the start of each period; a setpoint change takes effect at the next
	// period boundary.
	Period time.Duration
}

type Snapshot struct {
	Enabled bool `json:"enabled"`

	SwitchAvailable bool `json:"switch_available"`

	// Setpoint and OnMs describe the period currently being driven.
	Setpoint float64 `json:"setpoint"`
	OnMs     int     `json:"on_ms"`
	Output   bool    `json:"output_high"`

	PeriodsTotal uint64 `json:"periods_total"`

	LastUpdateAt time.Time `json:"last_update_utc,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// SetpointSource supplies the desired power fraction in [0,1]. It must be
// safe for concurrent use.
type SetpointSource interface {
	Setpoint() float64
}

// Service approximates a fractional power setpoint as a time-proportioned
// on/off pattern on the SSR line ("slice" control).
//
// Timing uses plain channel waits, so accuracy is bounded by scheduler
// preemption jitter rather than a hardware timer. For a thermal load on a
// 100 ms period that is an accepted tradeoff.
type Service struct {
	cfg Config
	src SetpointSource

	mu   sync.RWMutex
	snap Snapshot

	drvMu sync.Mutex
	drv   switchDriver

	wg sync.WaitGroup

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(cfg Config, src SetpointSource) *Service {
	if cfg.Pin == 0 {
		cfg.Pin = 17
	}
	if cfg.Period <= 0 {
		cfg.Period = 100 * time.Millisecond
	}
	return &Service{cfg: cfg, src: src, stopCh: make(chan struct{})}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})

	// Ensure the driver is not used concurrently with Close.
	s.wg.Wait()

	s.drvMu.Lock()
	drv := s.drv
	s.drv = nil
	s.drvMu.Unlock()
	if drv != nil {
		_ = drv.Close()
	}
}

func (s *Service) setErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastError = msg
	s.snap.LastUpdateAt = time.Now().UTC()
}

func (s *Service) setState(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snap)
	s.snap.LastUpdateAt = time.Now().UTC()
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("actuator: service is nil")
	}
	if s.src == nil {
		return fmt.Errorf("actuator: setpoint source is nil")
	}
	if !s.cfg.Enable {
		return nil
	}

	s.setState(func(sn *Snapshot) {
		sn.Enabled = true
	})

	drv, err := openSwitchFn(s.cfg)
	if err != nil {
		s.setErr(err.Error())
		return err
	}
	s.drvMu.Lock()
	s.drv = drv
	s.drvMu.Unlock()

	s.setState(func(sn *Snapshot) {
		sn.SwitchAvailable = true
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLoop(ctx, drv)
	}()

	// Ensure the SSR drops out if the runtime context is canceled.
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return nil
}

// onDuration returns the high phase for one period, clamped to [0, period].
func onDuration(setpoint float64, period time.Duration) time.Duration {
	periodMs := float64(period / time.Millisecond)
	onMs := math.Round(setpoint * periodMs)
	if onMs <= 0 {
		return 0
	}
	if onMs >= periodMs {
		return period
	}
	return time.Duration(onMs) * time.Millisecond
}

func (s *Service) runLoop(ctx context.Context, drv switchDriver) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		// The setpoint is read once per period; the resulting split is fixed
		// for the whole period so the SSR never sees a mid-cycle glitch.
		sp := s.src.Setpoint()
		on := onDuration(sp, s.cfg.Period)

		s.setState(func(sn *Snapshot) {
			sn.Setpoint = sp
			sn.OnMs = int(on / time.Millisecond)
			sn.PeriodsTotal++
		})

		// Drive failures are best-effort: a physical SSR fault cannot be fixed
		// in software, so the loop keeps attempting subsequent periods.
		switch {
		case on <= 0:
			s.drive(drv, false)
			if !s.wait(ctx, s.cfg.Period) {
				return
			}
		case on >= s.cfg.Period:
			s.drive(drv, true)
			if !s.wait(ctx, s.cfg.Period) {
				return
			}
		default:
			s.drive(drv, true)
			if !s.wait(ctx, on) {
				return
			}
			s.drive(drv, false)
			if !s.wait(ctx, s.cfg.Period-on) {
				return
			}
		}
	}
}

func (s *Service) drive(drv switchDriver, on bool) {
	if err := drv.Set(on); err != nil {
		s.setState(func(sn *Snapshot) {
			sn.LastError = fmt.Sprintf("actuator: set output failed: %v", err)
		})
		return
	}
	s.setState(func(sn *Snapshot) {
		sn.Output = on
		sn.LastError = ""
	})
}

// wait blocks for d or until shutdown; it reports whether the loop should
// keep running.
func (s *Service) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.stopCh:
		return false
	case <-afterFn(d):
		return true
	}
}
