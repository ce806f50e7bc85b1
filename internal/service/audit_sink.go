package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
)

type AuditEntry struct {
	Type          domain.AuditEventType
	SessionID     string
	ParticipantID string
	Data          map[string]any
	IP            string
	UserAgent     string
}

// AuditRecorder accepts security audit events. Implementations must not
// block the caller on storage.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type NoopAuditRecorder struct{}

func (NoopAuditRecorder) Record(context.Context, AuditEntry) {}

// AsyncAuditSink logs every entry and persists it from a background worker.
// Entries are dropped with a warning when the buffer is full.
type AsyncAuditSink struct {
	repo   repository.AuditRepository
	logger *slog.Logger
	queue  chan AuditEntry
	wg     sync.WaitGroup
	once   sync.Once
}

func NewAsyncAuditSink(repo repository.AuditRepository, logger *slog.Logger, buffer int) *AsyncAuditSink {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &AsyncAuditSink{repo: repo, logger: logger, queue: make(chan AuditEntry, buffer)}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *AsyncAuditSink) Record(ctx context.Context, entry AuditEntry) {
	observability.AuditContext(ctx, string(entry.Type),
		"session_id", entry.SessionID,
		"participant_id", entry.ParticipantID,
		"ip", entry.IP,
	)
	select {
	case s.queue <- entry:
	default:
		observability.RecordAuditDropped(ctx, string(entry.Type))
		s.logger.WarnContext(ctx, "audit buffer full, dropping event", "event_type", entry.Type)
	}
}

// Close stops accepting entries and waits for queued ones to be written.
func (s *AsyncAuditSink) Close() {
	s.once.Do(func() {
		close(s.queue)
		s.wg.Wait()
	})
}

func (s *AsyncAuditSink) run() {
	defer s.wg.Done()
	for entry := range s.queue {
		event := &domain.AuditEvent{
			EventType: entry.Type,
			IP:        entry.IP,
			UserAgent: entry.UserAgent,
		}
		if entry.SessionID != "" {
			sid := entry.SessionID
			event.SessionID = &sid
		}
		if entry.ParticipantID != "" {
			pid := entry.ParticipantID
			event.ParticipantID = &pid
		}
		if len(entry.Data) > 0 {
			if raw, err := json.Marshal(entry.Data); err == nil {
				event.EventData = string(raw)
			}
		}
		if err := s.repo.Create(context.Background(), event); err != nil {
			s.logger.Warn("persist audit event failed", "event_type", entry.Type, "error", err)
		}
	}
}
