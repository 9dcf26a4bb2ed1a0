// Package telemetry runs the HTTP receiver the instrumented app posts its
// analytics events to. Received events are appended to the shared event store
// in arrival order, where the correlator picks them up.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/testlab-dev/appharness/pkg/events"
	"github.com/testlab-dev/appharness/pkg/logger"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	maxBodyBytes = 4 << 20
)

// Receiver is the telemetry ingestion endpoint. One receiver serves one
// session; the app under test is pointed at it via its instrumentation
// config.
type Receiver struct {
	store      *events.Store
	httpServer *http.Server
	handler    http.Handler
}

// batch is the wire format posted by the app's analytics bridge. Payload is
// kept as raw JSON; interpretation is the correlator's job.
type batch struct {
	Events []struct {
		Name    string          `json:"name"`
		Payload json.RawMessage `json:"payload"`
	} `json:"events"`
}

// NewReceiver creates a receiver listening on the given port once started.
func NewReceiver(store *events.Store, port int) *Receiver {
	r := &Receiver{store: store}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", r.handleEvents)
	mux.HandleFunc("GET /healthz", r.handleHealth)

	r.handler = mux
	r.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	return r
}

// Handler returns the root handler for use in tests.
func (r *Receiver) Handler() http.Handler {
	return r.handler
}

// Start serves until Shutdown. It blocks; run it on its own goroutine.
func (r *Receiver) Start() error {
	logger.Info("telemetry receiver listening on %s", r.httpServer.Addr)
	if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the receiver.
func (r *Receiver) Shutdown(ctx context.Context) error {
	logger.Info("telemetry receiver shutting down")
	return r.httpServer.Shutdown(ctx)
}

func (r *Receiver) handleEvents(w http.ResponseWriter, req *http.Request) {
	var b batch
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(&b); err != nil {
		logger.Warn("telemetry: rejected malformed batch: %v", err)
		http.Error(w, "malformed event batch", http.StatusBadRequest)
		return
	}

	for _, ev := range b.Events {
		if ev.Name == "" {
			http.Error(w, "event without name", http.StatusBadRequest)
			return
		}
	}

	// Append only after the whole batch validated, preserving arrival order.
	for _, ev := range b.Events {
		stored := r.store.Append(ev.Name, string(ev.Payload))
		logger.Debug("telemetry: event %d %s", stored.Seq, stored.Name)
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{"accepted": len(b.Events)})
}

func (r *Receiver) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"events": r.store.Len(),
	})
}
