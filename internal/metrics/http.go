// internal/metrics/http.go
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tamzrod/deye-bridge/internal/registers"
	"github.com/tamzrod/deye-bridge/internal/status"
)

// Source exposes the poll state the HTTP endpoint reports.
type Source interface {
	Health(now time.Time) status.Snapshot
	LastRegisters() registers.Map
}

type registerBody struct {
	Address uint16 `json:"address"`
	Int     uint16 `json:"int"`
	Low     byte   `json:"low"`
	High    byte   `json:"high"`
}

// Router serves /metrics, /healthz and /registers/{addr}.
func Router(g prometheus.Gatherer, src Source) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{})).Methods("GET")

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		now := time.Now()
		s := src.Health(now)

		body, err := status.Encode(s, now)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		code := http.StatusOK
		if s.Health == status.HealthError || s.Health == status.HealthStale {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		w.WriteHeader(code)
		_, _ = w.Write(body)
	}).Methods("GET")

	r.HandleFunc("/registers/{addr}", func(w http.ResponseWriter, req *http.Request) {
		vars := mux.Vars(req)
		addr, err := strconv.ParseUint(vars["addr"], 0, 16)
		if err != nil {
			http.Error(w, "malformed register address", http.StatusBadRequest)
			return
		}

		v, ok := src.LastRegisters()[uint16(addr)]
		if !ok {
			http.Error(w, "register not read in last cycle", http.StatusNotFound)
			return
		}

		body, _ := json.Marshal(registerBody{
			Address: uint16(addr),
			Int:     v.Uint16(),
			Low:     v.Low(),
			High:    v.High(),
		})
		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		_, _ = w.Write(body)
	}).Methods("GET")

	return r
}

// Serve runs the endpoint on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", addr).Msg("metrics endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
