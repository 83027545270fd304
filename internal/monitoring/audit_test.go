package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"call-screener/internal/config"
)

func newTestAuditLogger(t *testing.T, maxEvents int) *AuditLogger {
	t.Helper()
	al := NewAuditLogger(&config.AuditConfig{Enabled: true, BufferSize: 16, MaxEvents: maxEvents}, zap.NewNop())
	t.Cleanup(func() { _ = al.Close() })
	return al
}

func TestAuditLoggerRecordsNewestFirst(t *testing.T) {
	al := newTestAuditLogger(t, 10)

	require.True(t, al.Record(&AuditEvent{Type: EventListAdd, Action: "POST", Status: "success"}))
	require.True(t, al.Record(&AuditEvent{Type: EventRuleCreate, Action: "POST", Status: "success"}))
	require.True(t, al.Record(&AuditEvent{Type: EventDataReset, Action: "DELETE", Status: "failure"}))
	require.NoError(t, al.Close())

	events := al.Recent(10)
	require.Len(t, events, 3)
	assert.Equal(t, EventDataReset, events[0].Type)
	assert.Equal(t, EventListAdd, events[2].Type)

	for _, e := range events {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Timestamp.IsZero())
		assert.True(t, VerifyChecksum(e))
	}
}

func TestAuditLoggerFiltersAndLimits(t *testing.T) {
	al := newTestAuditLogger(t, 10)

	for i := 0; i < 3; i++ {
		al.Record(&AuditEvent{Type: EventListAdd})
	}
	al.Record(&AuditEvent{Type: EventSeedReload})

	assert.Eventually(t, func() bool { return len(al.Recent(10)) == 4 }, time.Second, 5*time.Millisecond)

	assert.Len(t, al.Recent(2), 2)
	assert.Len(t, al.Recent(10, EventListAdd), 3)
	assert.Len(t, al.Recent(10, EventSeedReload, EventRuleDelete), 1)
}

func TestAuditLoggerKeepsMaxEvents(t *testing.T) {
	al := newTestAuditLogger(t, 3)

	for i := 0; i < 5; i++ {
		al.Record(&AuditEvent{Type: EventDataModify, StatusCode: 200 + i})
	}
	require.NoError(t, al.Close())

	events := al.Recent(10)
	require.Len(t, events, 3)
	assert.Equal(t, 204, events[0].StatusCode)
	assert.Equal(t, 202, events[2].StatusCode)
}

func TestAuditChecksumDetectsTampering(t *testing.T) {
	al := newTestAuditLogger(t, 10)

	event := &AuditEvent{Type: EventPolicyUpdate, Status: "success"}
	al.Record(event)
	require.NoError(t, al.Close())

	assert.True(t, VerifyChecksum(event))
	event.Status = "failure"
	assert.False(t, VerifyChecksum(event))
}

func TestAuditLoggerRecordAfterClose(t *testing.T) {
	al := newTestAuditLogger(t, 10)
	require.NoError(t, al.Close())

	assert.False(t, al.Record(&AuditEvent{Type: EventListClear}))
	assert.NoError(t, al.Close())
}
