package web

import (
	"time"

	"stillheat/internal/actuator"
	"stillheat/internal/sampler"
	"stillheat/internal/wifi"
)

var processStart = time.Now().UTC()

type StatusSnapshot struct {
	Service   string `json:"service"`
	NowUTC    string `json:"now_utc"`
	UptimeSec int64  `json:"uptime_sec"`

	Setpoint    float64 `json:"setpoint"`
	CurrentRMSA float64 `json:"current_rms_a"`

	Sampler  *sampler.Snapshot  `json:"sampler,omitempty"`
	Actuator *actuator.Snapshot `json:"actuator,omitempty"`
	Wifi     *wifi.Status       `json:"wifi,omitempty"`
}

func statusSnapshot(nowUTC time.Time, src Sources) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	sp, rms := src.Store.Read()
	snap := StatusSnapshot{
		Service:     "stillheat",
		NowUTC:      nowUTC.Format(time.RFC3339Nano),
		UptimeSec:   int64(nowUTC.Sub(processStart).Seconds()),
		Setpoint:    sp,
		CurrentRMSA: rms,
	}
	if src.Sampler != nil {
		s := src.Sampler()
		snap.Sampler = &s
	}
	if src.Actuator != nil {
		a := src.Actuator()
		snap.Actuator = &a
	}
	if src.Wifi != nil {
		w := src.Wifi()
		snap.Wifi = &w
	}
	return snap
}
