package sampler

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// immediateAfter removes all backoff/inter-batch waits from the loop.
func immediateAfter(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

type fakeSource struct {
	read func() (int16, error)
}

func (f *fakeSource) ReadRaw() (int16, error) { return f.read() }
func (f *fakeSource) Close() error            { return nil }

type capturePublisher struct {
	ch chan float64
}

func (p *capturePublisher) SetCurrentRMS(v float64) {
	select {
	case p.ch <- v:
	default:
	}
}

// offsetConfig makes currentFromRaw a simple offset: amperes == counts - 1.
// All constants are non-zero so New keeps them instead of applying hardware
// defaults.
func offsetConfig() Config {
	return Config{
		Enable:       true,
		BatchSize:    100,
		ADCMax:       1,
		VRef:         1,
		VZero:        1,
		SenseVPerA:   1,
		RetryBackoff: time.Nanosecond,
		BatchDelay:   time.Nanosecond,
	}
}

func startWithSource(t *testing.T, cfg Config, src analogSource, pub Publisher) *Service {
	t.Helper()

	oldOpen := openSourceFn
	openSourceFn = func(Config) (analogSource, error) { return src, nil }
	t.Cleanup(func() { openSourceFn = oldOpen })

	oldAfter := afterFn
	afterFn = immediateAfter
	t.Cleanup(func() { afterFn = oldAfter })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc := New(cfg, pub)
	require.NoError(t, svc.Start(ctx))
	t.Cleanup(svc.Close)
	return svc
}

func TestBatchRMS_AlternatingCurrents(t *testing.T) {
	n := 0
	src := &fakeSource{read: func() (int16, error) {
		n++
		if n%2 == 0 {
			return 4, nil // 3.0 A
		}
		return 2, nil // 1.0 A
	}}
	pub := &capturePublisher{ch: make(chan float64, 1)}

	startWithSource(t, offsetConfig(), src, pub)

	select {
	case rms := <-pub.ch:
		assert.InDelta(t, math.Sqrt((1.0+9.0)/2.0), rms, 1e-9) // ~2.236 A
	case <-time.After(2 * time.Second):
		t.Fatalf("no RMS published")
	}
}

func TestFullyFailedBatchPublishesZero(t *testing.T) {
	src := &fakeSource{read: func() (int16, error) {
		return 0, errors.New("remote io error")
	}}
	pub := &capturePublisher{ch: make(chan float64, 1)}

	svc := startWithSource(t, offsetConfig(), src, pub)

	select {
	case rms := <-pub.ch:
		assert.Equal(t, 0.0, rms)
	case <-time.After(2 * time.Second):
		t.Fatalf("no RMS published")
	}

	// The failure is visible in the snapshot, not in the telemetry value.
	deadline := time.Now().Add(time.Second)
	for {
		snap := svc.Snapshot()
		if snap.BatchesTotal > 0 {
			assert.True(t, snap.LastBatchZero)
			assert.Equal(t, 0, snap.AcceptedLast)
			assert.Equal(t, 100, snap.FailedLast)
			assert.Contains(t, snap.LastError, "remote io error")
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch never recorded")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPartialFailuresUseAcceptedCount(t *testing.T) {
	n := 0
	src := &fakeSource{read: func() (int16, error) {
		n++
		if n%2 == 0 {
			return 0, errors.New("transient")
		}
		return 3, nil // constant 2.0 A on the accepted half
	}}
	pub := &capturePublisher{ch: make(chan float64, 1)}

	svc := startWithSource(t, offsetConfig(), src, pub)

	select {
	case rms := <-pub.ch:
		// RMS of a constant 2.0 A subset is 2.0, not diluted by failed slots.
		assert.InDelta(t, 2.0, rms, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatalf("no RMS published")
	}

	deadline := time.Now().Add(time.Second)
	for {
		snap := svc.Snapshot()
		if snap.BatchesTotal > 0 {
			assert.Equal(t, 50, snap.AcceptedLast)
			assert.Equal(t, 50, snap.FailedLast)
			assert.False(t, snap.LastBatchZero)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch never recorded")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCurrentFromRaw_Calibration(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		raw  int16
		want float64
	}{
		{
			name: "full scale on 30A sensor",
			cfg:  Config{ADCMax: 32767, VRef: 4.096, VZero: 2.5, SenseVPerA: 0.066},
			raw:  32767,
			want: (4.096 - 2.5) / 0.066,
		},
		{
			name: "mid rail reads zero current",
			cfg:  Config{ADCMax: 32767, VRef: 4.096, VZero: 2.5, SenseVPerA: 0.066},
			raw:  int16(math.Round(2.5 / 4.096 * 32767)),
			want: 0,
		},
		{
			name: "below mid rail is negative",
			cfg:  Config{ADCMax: 32767, VRef: 4.096, VZero: 2.5, SenseVPerA: 0.066},
			raw:  8000,
			want: (float64(8000)/32767*4.096 - 2.5) / 0.066,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Service{cfg: tt.cfg}
			assert.InDelta(t, tt.want, s.currentFromRaw(tt.raw), 1e-3)
		})
	}
}

func TestStartDisabledDoesNothing(t *testing.T) {
	oldOpen := openSourceFn
	opened := false
	openSourceFn = func(Config) (analogSource, error) {
		opened = true
		return nil, errors.New("should not open")
	}
	t.Cleanup(func() { openSourceFn = oldOpen })

	svc := New(Config{Enable: false}, &capturePublisher{ch: make(chan float64, 1)})
	require.NoError(t, svc.Start(context.Background()))
	assert.False(t, opened)
	svc.Close()
}

func TestStartFailsWhenSourceUnavailable(t *testing.T) {
	oldOpen := openSourceFn
	openSourceFn = func(Config) (analogSource, error) {
		return nil, errors.New("no such bus")
	}
	t.Cleanup(func() { openSourceFn = oldOpen })

	svc := New(offsetConfig(), &capturePublisher{ch: make(chan float64, 1)})
	err := svc.Start(context.Background())
	require.Error(t, err)
	snap := svc.Snapshot()
	assert.False(t, snap.SourceAvailable)
	assert.Contains(t, snap.LastError, "no such bus")
	svc.Close()
}
