// Package auditlog persists vault audit events in a WAL so external
// indexers can replay the full history and tail new entries.
package auditlog

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"go.uber.org/zap"

	"github.com/rollvault/rollvault/internal/domain"
)

const (
	defaultAuditDir   = "./wal/audit"
	auditSegmentLimit = 1000
	auditMaxSegments  = 100
	auditKeyPrefix    = "vault_event_"
)

// WALStore persists audit events in a WAL for recovery/streaming purposes.
type WALStore struct {
	wal    *gowal.Wal
	logger *zap.Logger
	mu     sync.RWMutex
}

// NewWALStore initializes a WAL-backed audit log under the provided directory.
// A nil logger disables logging.
func NewWALStore(dir string, logger *zap.Logger) (*WALStore, error) {
	if dir == "" {
		dir = defaultAuditDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "audit_",
		SegmentThreshold: auditSegmentLimit,
		MaxSegments:      auditMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init audit WAL")
	}

	return &WALStore{wal: wal, logger: logger}, nil
}

// Record appends the event to the WAL. Persistence is best-effort from the
// vault's point of view: a write failure is logged here, never surfaced into
// the operation that emitted the event.
func (s *WALStore) Record(event domain.Event) {
	err := s.Append(event)
	if err == nil {
		return
	}
	if s != nil && s.logger != nil {
		s.logger.Error("persist audit event",
			zap.String("kind", string(event.Kind)),
			zap.Error(err))
	}
}

// Append writes the event to the WAL and reports any storage error.
func (s *WALStore) Append(event domain.Event) error {
	if s == nil || s.wal == nil {
		return errors.New("audit store is not initialized")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal audit event")
	}

	key := auditKeyPrefix + string(event.Kind)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// EventsAfter returns all audit events written after the provided WAL index.
func (s *WALStore) EventsAfter(index uint64) ([]domain.EventRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("audit store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.EventRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(key, auditKeyPrefix) {
			continue
		}
		var event domain.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errors.Wrap(err, "decode audit event")
		}
		records = append(records, domain.EventRecord{
			Index: idx,
			Event: event,
		})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("audit store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
