package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"stillheat/internal/actuator"
	"stillheat/internal/controlstate"
	"stillheat/internal/led"
	"stillheat/internal/sampler"
	"stillheat/internal/wifi"
)

// The browser UI is served from arbitrary origins (often a file:// page on
// the operator's laptop), so every endpoint carries permissive CORS headers
// and answers OPTIONS preflights.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":          "*",
	"Access-Control-Allow-Methods":         "GET, OPTIONS",
	"Access-Control-Allow-Headers":         "Content-Type",
	"Access-Control-Allow-Private-Network": "true",
}

// PixelSetter is the optional LED demo hook.
type PixelSetter interface {
	SetColor(c led.Color) error
}

// Sources aggregates everything the HTTP surface reads. Store is required;
// the snapshot funcs and the pixel are optional.
type Sources struct {
	Store    *controlstate.Store
	Sampler  func() sampler.Snapshot
	Actuator func() actuator.Snapshot
	Wifi     func() wifi.Status
	Pixel    PixelSetter
}

func setCORS(w http.ResponseWriter) {
	for k, v := range corsHeaders {
		w.Header().Set(k, v)
	}
}

// guardGet handles preflight and method filtering for the command endpoints.
// It reports whether the caller should continue with the GET.
func guardGet(w http.ResponseWriter, r *http.Request) bool {
	setCORS(w)
	switch r.Method {
	case http.MethodOptions:
		// 204 No Content is typical for preflight.
		w.WriteHeader(http.StatusNoContent)
		return false
	case http.MethodGet:
		return true
	default:
		w.Header().Set("Allow", "GET, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
}

func Handler(src Sources) http.Handler {
	mux := http.NewServeMux()

	// Setpoint command: /power?level=<fraction|off>.
	// Unparsable input is a no-op; the response always reports the setpoint
	// now in effect so the client can confirm what the controller accepted.
	mux.HandleFunc("/power", func(w http.ResponseWriter, r *http.Request) {
		if !guardGet(w, r) {
			return
		}
		level := ApplySetpointRequest(src.Store, r.URL.Query().Get("level"))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintf(w, "OK: level=%.3f\n", level)
	})

	// Telemetry read: the most recent RMS current estimate in amperes.
	mux.HandleFunc("/telemetry/current", func(w http.ResponseWriter, r *http.Request) {
		if !guardGet(w, r) {
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintf(w, "%s\n", ReadTelemetry(src.Store))
	})

	// LED color demo: /led/color?r=..&g=..&b=.. (unrelated to the control
	// loop; only present when a pixel is configured).
	mux.HandleFunc("/led/color", func(w http.ResponseWriter, r *http.Request) {
		if !guardGet(w, r) {
			return
		}
		if src.Pixel == nil {
			http.Error(w, "led unavailable", http.StatusNotFound)
			return
		}
		q := r.URL.Query()
		c := led.Color{
			R: parseByte(q.Get("r")),
			G: parseByte(q.Get("g")),
			B: parseByte(q.Get("b")),
		}
		if err := src.Pixel.SetColor(c); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintf(w, "OK: r=%d g=%d b=%d\n", c.R, c.G, c.B)
	})

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !guardGet(w, r) {
			return
		}
		snap := statusSnapshot(time.Now().UTC(), src)
		b, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
	})

	return mux
}

// parseByte is forgiving: bad values fall back to 0.
func parseByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func Serve(ctx context.Context, listenAddr string, src Sources) error {
	if src.Store == nil {
		return fmt.Errorf("web: store is nil")
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(src),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
