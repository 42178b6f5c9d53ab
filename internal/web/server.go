// Package web exposes the vault's observability surface: a status endpoint
// and an SSE stream of audit events replayed from the WAL.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rollvault/rollvault/internal/domain"
	"github.com/rollvault/rollvault/internal/services/vault"
)

const eventPollInterval = 2 * time.Second

type auditReader interface {
	EventsAfter(index uint64) ([]domain.EventRecord, error)
}

type vaultReader interface {
	Window() domain.Window
	BufferTime() time.Duration
	LimitPrice() decimal.Decimal
	Paused() bool
	PhaseNow() domain.PhaseKind
	TotalShares() decimal.Decimal
	ExchangeAllowance(ctx context.Context) (decimal.Decimal, error)
	PrimaryBalance(ctx context.Context) (decimal.Decimal, error)
	SettlementBalance(ctx context.Context) (decimal.Decimal, error)
	Migration() vault.MigrationStatus
}

// Server exposes HTTP endpoints serving the status page and an SSE stream.
type Server struct {
	Addr  string
	Vault vaultReader
	Audit auditReader
}

// NewServer creates a new web server instance.
func NewServer(addr string, v vaultReader, audit auditReader) *Server {
	return &Server{Addr: addr, Vault: v, Audit: audit}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/vault/status", s.handleStatus)
	mux.HandleFunc("/events/stream", s.handleEventStream)

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

type statusResponse struct {
	Phase             string `json:"phase"`
	WindowStart       int64  `json:"window_start"`
	WindowEnd         int64  `json:"window_end"`
	BufferSeconds     int64  `json:"buffer_seconds"`
	LimitPrice        string `json:"limit_price"`
	Paused            bool   `json:"paused"`
	TotalShares       string `json:"total_shares"`
	PrimaryBalance    string `json:"primary_balance"`
	SettlementBalance string `json:"settlement_balance"`
	ExchangeAllowance string `json:"exchange_allowance"`
	MigrationTarget   string `json:"migration_target,omitempty"`
	MigrateableAfter  int64  `json:"migrateable_after,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.Vault == nil {
		http.Error(w, "vault not available", http.StatusServiceUnavailable)
		return
	}

	primary, err := s.Vault.PrimaryBalance(r.Context())
	if err != nil {
		http.Error(w, "failed to read primary balance", http.StatusInternalServerError)
		return
	}
	settlement, err := s.Vault.SettlementBalance(r.Context())
	if err != nil {
		http.Error(w, "failed to read settlement balance", http.StatusInternalServerError)
		return
	}
	allowance, err := s.Vault.ExchangeAllowance(r.Context())
	if err != nil {
		http.Error(w, "failed to read exchange allowance", http.StatusInternalServerError)
		return
	}

	window := s.Vault.Window()
	migration := s.Vault.Migration()

	resp := statusResponse{
		Phase:             s.Vault.PhaseNow().String(),
		WindowStart:       window.Start.Unix(),
		WindowEnd:         window.End.Unix(),
		BufferSeconds:     int64(s.Vault.BufferTime() / time.Second),
		LimitPrice:        s.Vault.LimitPrice().String(),
		Paused:            s.Vault.Paused(),
		TotalShares:       s.Vault.TotalShares().String(),
		PrimaryBalance:    primary.String(),
		SettlementBalance: settlement.String(),
		ExchangeAllowance: allowance.String(),
	}
	if migration.Scheduled {
		resp.MigrationTarget = migration.Target
		resp.MigrateableAfter = migration.MigrateableAfter.Unix()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("status encode: %v", err)
	}
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.Audit == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "audit store not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// send a comment heartbeat every 30s so proxies keep connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(eventPollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendEvents := func() error {
		records, err := s.Audit.EventsAfter(lastIndex)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Event)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: %s\n", record.Event.Kind)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendEvents(); err != nil {
		http.Error(w, "failed to load audit events", http.StatusInternalServerError)
		log.Printf("event stream initial load: %v", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendEvents(); err != nil {
				log.Printf("event stream poll err: %v", err)
			}
		}
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>rollvault</title>
  <style>
    body { font-family: monospace; margin: 2rem; background: #111; color: #ddd; }
    h1 { font-size: 1.2rem; }
    pre { background: #1b1b1b; padding: 1rem; border-radius: 4px; }
    #log div { border-bottom: 1px solid #2a2a2a; padding: 0.25rem 0; }
  </style>
</head>
<body>
  <h1>rollvault</h1>
  <pre id="status">loading...</pre>
  <div id="log"></div>
  <script>
    async function refreshStatus() {
      const res = await fetch('/vault/status');
      document.getElementById('status').textContent = JSON.stringify(await res.json(), null, 2);
    }
    refreshStatus();
    setInterval(refreshStatus, 5000);

    const log = document.getElementById('log');
    const es = new EventSource('/events/stream');
    ['deposit','withdraw','option_purchase','rollover','pause','unpause',
     'set_limit_price','set_buffer_time','migration_schedule','migration_execute'].forEach(kind => {
      es.addEventListener(kind, e => {
        const row = document.createElement('div');
        row.textContent = kind + ' ' + e.data;
        log.prepend(row);
      });
    });
  </script>
</body>
</html>
`
