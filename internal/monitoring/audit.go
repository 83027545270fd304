package monitoring

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"call-screener/internal/config"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	// List events
	EventListAdd    AuditEventType = "list_add"
	EventListRemove AuditEventType = "list_remove"
	EventListClear  AuditEventType = "list_clear"

	// Rule events
	EventRuleCreate AuditEventType = "rule_create"
	EventRuleDelete AuditEventType = "rule_delete"

	// Configuration events
	EventSettingsUpdate AuditEventType = "settings_update"
	EventPolicyUpdate   AuditEventType = "policy_update"

	// Reputation events
	EventReputationReport AuditEventType = "reputation_report"
	EventSeedReload       AuditEventType = "seed_reload"

	// Data events
	EventDataReset  AuditEventType = "data_reset"
	EventDataModify AuditEventType = "data_modify"
)

// AuditEvent represents a single management change
type AuditEvent struct {
	ID           string         `json:"id"`
	Type         AuditEventType `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	Action       string         `json:"action"`
	ResourcePath string         `json:"resource_path"`
	// Status is "success" or "failure"
	Status      string `json:"status"`
	StatusCode  int    `json:"status_code"`
	ActorIP     string `json:"actor_ip,omitempty"`
	Correlation string `json:"correlation_id,omitempty"`
	Checksum    string `json:"checksum"`
}

// AuditLogger keeps a bounded trail of management changes and writes each
// one to the log. Recording never blocks the request.
type AuditLogger struct {
	logger    *zap.Logger
	buffer    chan *AuditEvent
	maxEvents int

	mu     sync.RWMutex
	events []*AuditEvent

	closeOnce sync.Once
	done      chan struct{}
}

// NewAuditLogger creates a new audit logger and starts its background writer
func NewAuditLogger(cfg *config.AuditConfig, logger *zap.Logger) *AuditLogger {
	al := &AuditLogger{
		logger:    logger.Named("audit"),
		buffer:    make(chan *AuditEvent, cfg.BufferSize),
		maxEvents: cfg.MaxEvents,
		events:    make([]*AuditEvent, 0),
		done:      make(chan struct{}),
	}

	go al.processEvents()

	logger.Info("audit logger initialized",
		zap.Int("buffer_size", cfg.BufferSize),
		zap.Int("max_events", cfg.MaxEvents))

	return al
}

// Record stamps and queues an event. It reports false when the buffer is full.
func (al *AuditLogger) Record(event *AuditEvent) (queued bool) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Checksum = generateChecksum(event)

	defer func() {
		// Send on a closed buffer after shutdown
		if recover() != nil {
			queued = false
		}
	}()

	select {
	case al.buffer <- event:
		return true
	default:
		al.logger.Warn("audit event buffer full, dropping event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return false
	}
}

// Recent returns up to limit events, newest first, optionally filtered by type
func (al *AuditLogger) Recent(limit int, types ...AuditEventType) []*AuditEvent {
	al.mu.RLock()
	defer al.mu.RUnlock()

	out := make([]*AuditEvent, 0)
	for i := len(al.events) - 1; i >= 0 && len(out) < limit; i-- {
		if matchesType(al.events[i], types) {
			out = append(out, al.events[i])
		}
	}
	return out
}

// Close stops accepting events and waits for queued ones to be stored
func (al *AuditLogger) Close() error {
	al.closeOnce.Do(func() {
		close(al.buffer)
	})
	<-al.done
	return nil
}

func (al *AuditLogger) processEvents() {
	defer close(al.done)
	for event := range al.buffer {
		al.storeEvent(event)
		al.logger.Info("audit event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("action", event.Action),
			zap.String("resource", event.ResourcePath),
			zap.String("status", event.Status),
			zap.Int("status_code", event.StatusCode),
			zap.String("correlation_id", event.Correlation))
	}
}

func (al *AuditLogger) storeEvent(event *AuditEvent) {
	al.mu.Lock()
	defer al.mu.Unlock()

	al.events = append(al.events, event)

	// Keep most recent events
	if len(al.events) > al.maxEvents {
		al.events = append([]*AuditEvent(nil), al.events[len(al.events)-al.maxEvents:]...)
	}
}

func matchesType(event *AuditEvent, types []AuditEventType) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if event.Type == t {
			return true
		}
	}
	return false
}

// generateChecksum hashes the event without its checksum field
func generateChecksum(event *AuditEvent) string {
	clone := *event
	clone.Checksum = ""
	data, _ := json.Marshal(clone)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum reports whether event is unmodified since it was recorded
func VerifyChecksum(event *AuditEvent) bool {
	return event.Checksum != "" && event.Checksum == generateChecksum(event)
}
