package web

import (
	"math"
	"strconv"
	"strings"

	"stillheat/internal/controlstate"
)

const offToken = "off"

// ApplySetpointRequest translates one setpoint command into a store write.
//
// A numeric value is clamped to [0,1] by the store; the "off" token forces
// 0.0; anything unparsable is a no-op and the previous setpoint stays in
// effect. The return value is the setpoint now stored, whichever case ran.
func ApplySetpointRequest(store *controlstate.Store, raw string) float64 {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, offToken) {
		return store.SetSetpoint(0)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		return store.Setpoint()
	}
	return store.SetSetpoint(v)
}

// ReadTelemetry formats the current RMS estimate for clients. Three decimal
// places is plenty for a heater current loop.
func ReadTelemetry(store *controlstate.Store) string {
	return strconv.FormatFloat(store.CurrentRMS(), 'f', 3, 64)
}
