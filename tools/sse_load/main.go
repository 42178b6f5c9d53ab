// Load generator for the vault's audit event stream. Opens many concurrent
// SSE connections, decodes every frame into a vault event and reports
// per-kind throughput plus malformed frames, so broadcaster fanout and the
// WAL tail path can be exercised under pressure.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rollvault/rollvault/internal/domain"
)

type streamStats struct {
	mu        sync.Mutex
	byKind    map[domain.EventKind]int64
	connected int64
	connErrs  int64
	readErrs  int64
	malformed int64
	frames    int64
}

func (s *streamStats) countEvent(kind domain.EventKind) {
	s.mu.Lock()
	s.byKind[kind]++
	s.mu.Unlock()
	atomic.AddInt64(&s.frames, 1)
}

func (s *streamStats) kindReport() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	kinds := make([]string, 0, len(s.byKind))
	for kind := range s.byKind {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", kind, s.byKind[domain.EventKind(kind)]))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

func main() {
	var (
		targetURL string
		conns     int
		duration  time.Duration
		rampUp    time.Duration
	)
	flag.StringVar(&targetURL, "url", "http://localhost:8080/events/stream", "vault SSE endpoint")
	flag.IntVar(&conns, "conns", 500, "concurrent stream subscribers")
	flag.DurationVar(&duration, "dur", time.Minute, "run duration (0 runs until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "window to spread connection starts across")
	flag.Parse()

	if conns <= 0 {
		log.Fatalf("invalid conns: %d", conns)
	}
	if rampUp == 0 && conns > 100 {
		rampUp = time.Duration(conns/250) * time.Second
		if rampUp < time.Second {
			rampUp = time.Second
		}
		log.Printf("ramping %d connections over %s", conns, rampUp)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     conns + 50,
			MaxIdleConnsPerHost: conns + 50,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	stats := &streamStats{byKind: make(map[domain.EventKind]int64)}
	start := time.Now()

	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(conns)
	}

	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, targetURL, stats)
		}()
	}

	progress := time.NewTicker(5 * time.Second)
	go func() {
		defer progress.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-progress.C:
				log.Printf("connected=%d conn_errs=%d read_errs=%d events=%d malformed=%d elapsed=%s",
					atomic.LoadInt64(&stats.connected),
					atomic.LoadInt64(&stats.connErrs),
					atomic.LoadInt64(&stats.readErrs),
					atomic.LoadInt64(&stats.frames),
					atomic.LoadInt64(&stats.malformed),
					time.Since(start).Truncate(time.Second))
			}
		}
	}()

	wg.Wait()
	stop()

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	fmt.Printf("done: connected=%d conn_errs=%d read_errs=%d events=%d malformed=%d elapsed=%s events/s=%.2f\n",
		atomic.LoadInt64(&stats.connected),
		atomic.LoadInt64(&stats.connErrs),
		atomic.LoadInt64(&stats.readErrs),
		atomic.LoadInt64(&stats.frames),
		atomic.LoadInt64(&stats.malformed),
		elapsed.Truncate(time.Millisecond),
		float64(atomic.LoadInt64(&stats.frames))/elapsed.Seconds())
	fmt.Printf("by kind: %s\n", stats.kindReport())
}

// subscribe holds one SSE connection open and decodes every data frame as a
// vault audit event until the context ends or the stream breaks.
func subscribe(ctx context.Context, client *http.Client, url string, stats *streamStats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		atomic.AddInt64(&stats.connErrs, 1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddInt64(&stats.connErrs, 1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		atomic.AddInt64(&stats.connErrs, 1)
		return
	}
	atomic.AddInt64(&stats.connected, 1)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		// heartbeats arrive as comment lines, event names on "event:" lines;
		// only the data payload carries the JSON body
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		var event domain.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil || event.Kind == "" {
			atomic.AddInt64(&stats.malformed, 1)
			continue
		}
		stats.countEvent(event.Kind)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		atomic.AddInt64(&stats.readErrs, 1)
	}
}
