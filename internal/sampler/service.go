package sampler

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"stillheat/internal/i2c"
	"stillheat/internal/sensors/ads1115"
)

var openSourceFn = openSource
var afterFn = time.After

type Config struct {
	Enable bool

	// I2CBus selects /dev/i2c-N for the ADC.
	I2CBus int
	// ADCAddr is the ADS1115 7-bit address.
	ADCAddr uint16
	// Channel is the single-ended ADC input wired to the current sensor.
	Channel int

	// BatchSize is the number of samples aggregated into one RMS estimate.
	BatchSize int
	// RetryBackoff is the wait after a failed acquisition before moving on.
	RetryBackoff time.Duration
	// BatchDelay is the idle time between batches.
	BatchDelay time.Duration

	// Calibration: counts -> volts -> amperes.
	// voltage = raw/ADCMax * VRef; current = (voltage - VZero) / SenseVPerA.
	ADCMax     float64
	VRef       float64
	VZero      float64
	SenseVPerA float64
}

type Snapshot struct {
	Enabled bool `json:"enabled"`

	SourceAvailable bool `json:"source_available"`

	CurrentRMS float64 `json:"current_rms_a"`

	BatchesTotal  uint64 `json:"batches_total"`
	AcceptedLast  int    `json:"accepted_last_batch"`
	FailedLast    int    `json:"failed_last_batch"`
	LastBatchZero bool   `json:"last_batch_zero"`

	LastUpdateAt time.Time `json:"last_update_utc,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Publisher receives each completed RMS estimate.
type Publisher interface {
	SetCurrentRMS(v float64)
}

// Service estimates RMS load current from the ADC and publishes it.
//
// The loop never terminates on its own: failed acquisitions are skipped after
// a short backoff and a fully failed batch publishes 0.0 so stale telemetry
// cannot persist.
type Service struct {
	cfg Config
	pub Publisher

	mu   sync.RWMutex
	snap Snapshot

	srcMu sync.Mutex
	src   analogSource

	wg sync.WaitGroup

	stopOnce sync.Once
	stopCh   chan struct{}
}

// analogSource is the minimal interface the sampling loop needs from the ADC.
type analogSource interface {
	ReadRaw() (int16, error)
	Close() error
}

func New(cfg Config, pub Publisher) *Service {
	if cfg.I2CBus == 0 {
		cfg.I2CBus = 1
	}
	if cfg.ADCAddr == 0 {
		cfg.ADCAddr = ads1115.DefaultAddress()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 10 * time.Millisecond
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = 10 * time.Millisecond
	}
	if cfg.ADCMax == 0 {
		cfg.ADCMax = float64(ads1115.FullScaleCounts())
	}
	if cfg.VRef == 0 {
		cfg.VRef = ads1115.FullScaleVolts()
	}
	if cfg.VZero == 0 {
		// ACS712-style hall sensor idles at mid-rail.
		cfg.VZero = 2.5
	}
	if cfg.SenseVPerA == 0 {
		// 30 A ACS712 sensitivity.
		cfg.SenseVPerA = 0.066
	}
	return &Service{cfg: cfg, pub: pub, stopCh: make(chan struct{})}
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

	// Ensure the ADC is not used concurrently with Close.
	s.wg.Wait()

	s.srcMu.Lock()
	src := s.src
	s.src = nil
	s.srcMu.Unlock()
	if src != nil {
		_ = src.Close()
	}
}

func (s *Service) setState(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snap)
	s.snap.LastUpdateAt = time.Now().UTC()
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("sampler: service is nil")
	}
	if s.pub == nil {
		return fmt.Errorf("sampler: publisher is nil")
	}
	if !s.cfg.Enable {
		return nil
	}

	s.setState(func(sn *Snapshot) {
		sn.Enabled = true
	})

	src, err := openSourceFn(s.cfg)
	if err != nil {
		s.setState(func(sn *Snapshot) { sn.LastError = err.Error() })
		return err
	}
	s.srcMu.Lock()
	s.src = src
	s.srcMu.Unlock()

	s.setState(func(sn *Snapshot) {
		sn.SourceAvailable = true
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, src)
	}()

	// Release the ADC if the runtime context is canceled.
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return nil
}

func (s *Service) run(ctx context.Context, src analogSource) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		rms, accepted, failed, lastErr := s.sampleBatch(ctx, src)

		// A fully failed batch publishes 0.0: "no signal" rather than a stale
		// estimate living forever. Measured-zero and could-not-measure are
		// indistinguishable in the telemetry value itself; the snapshot keeps
		// the batch health visible.
		s.pub.SetCurrentRMS(rms)
		s.setState(func(sn *Snapshot) {
			sn.CurrentRMS = rms
			sn.BatchesTotal++
			sn.AcceptedLast = accepted
			sn.FailedLast = failed
			sn.LastBatchZero = accepted == 0
			if lastErr != "" {
				sn.LastError = lastErr
			} else {
				sn.LastError = ""
			}
		})

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-afterFn(s.cfg.BatchDelay):
		}
	}
}

// sampleBatch acquires one batch and returns the RMS over the accepted
// samples, or 0.0 when every acquisition in the batch failed.
func (s *Service) sampleBatch(ctx context.Context, src analogSource) (rms float64, accepted, failed int, lastErr string) {
	var sumSquares float64

	for slot := 0; slot < s.cfg.BatchSize; slot++ {
		select {
		case <-ctx.Done():
			return 0, accepted, failed, lastErr
		case <-s.stopCh:
			return 0, accepted, failed, lastErr
		default:
		}

		raw, err := src.ReadRaw()
		if err != nil {
			failed++
			lastErr = err.Error()
			// Back off before the next acquisition; the slot stays uncounted
			// so the denominator below is the accepted count, not BatchSize.
			select {
			case <-ctx.Done():
				return 0, accepted, failed, lastErr
			case <-s.stopCh:
				return 0, accepted, failed, lastErr
			case <-afterFn(s.cfg.RetryBackoff):
			}
			continue
		}

		cur := s.currentFromRaw(raw)
		sumSquares += cur * cur
		accepted++
	}

	if accepted == 0 {
		return 0, accepted, failed, lastErr
	}
	return math.Sqrt(sumSquares / float64(accepted)), accepted, failed, lastErr
}

func (s *Service) currentFromRaw(raw int16) float64 {
	voltage := float64(raw) / s.cfg.ADCMax * s.cfg.VRef
	return (voltage - s.cfg.VZero) / s.cfg.SenseVPerA
}

// openSource brings up the I2C bus and the ADC. The returned source owns the
// bus and closes it with the device.
func openSource(cfg Config) (analogSource, error) {
	busPath := fmt.Sprintf("/dev/i2c-%d", cfg.I2CBus)
	bus, err := i2c.Open(busPath)
	if err != nil {
		return nil, fmt.Errorf("sampler: open %s: %w", busPath, err)
	}
	adc, err := ads1115.New(bus.Dev(cfg.ADCAddr), cfg.Channel)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("sampler: adc init: %w", err)
	}
	return &adcSource{bus: bus, adc: adc}, nil
}

type adcSource struct {
	bus *i2c.Bus
	adc *ads1115.Device
}

func (a *adcSource) ReadRaw() (int16, error) {
	return a.adc.ReadRaw()
}

func (a *adcSource) Close() error {
	if a == nil || a.bus == nil {
		return nil
	}
	err := a.bus.Close()
	a.bus = nil
	return err
}
