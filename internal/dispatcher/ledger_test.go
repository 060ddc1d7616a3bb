package dispatcher

import (
	"errors"
	"testing"

	"github.com/sendora/sendora/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_Lifecycle(t *testing.T) {
	tasks := makeTasks(2)
	l := NewLedger(tasks)

	r, ok := l.Get(0)
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusQueued, r.Status)
	assert.Equal(t, "r0@example.com", r.Recipient)

	prev, ok := l.MarkSending(0, 1)
	assert.True(t, ok)
	assert.Equal(t, models.TaskStatusQueued, prev)

	prev, ok = l.MarkSent(0)
	assert.True(t, ok)
	assert.Equal(t, models.TaskStatusSending, prev)

	r, _ = l.Get(0)
	assert.Equal(t, models.TaskStatusSent, r.Status)
	assert.NotNil(t, r.SentAt)
	assert.Equal(t, 1, r.Attempts)
}

func TestLedger_TerminalStateNeverRegresses(t *testing.T) {
	l := NewLedger(makeTasks(1))

	l.MarkSending(0, 1)
	l.MarkSent(0)

	_, ok := l.MarkFailed(0, errors.New("late failure"))
	assert.False(t, ok, "SENT is terminal")

	_, ok = l.MarkSending(0, 2)
	assert.False(t, ok)

	r, _ := l.Get(0)
	assert.Equal(t, models.TaskStatusSent, r.Status)
	assert.Empty(t, r.Error)
}

func TestLedger_ValidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from models.TaskStatus
		to   models.TaskStatus
		want bool
	}{
		{"queued to sending", models.TaskStatusQueued, models.TaskStatusSending, true},
		{"queued to cancelled", models.TaskStatusQueued, models.TaskStatusCancelled, true},
		{"queued to failed", models.TaskStatusQueued, models.TaskStatusFailed, true},
		{"sending to retrying", models.TaskStatusSending, models.TaskStatusRetrying, true},
		{"retrying to sending", models.TaskStatusRetrying, models.TaskStatusSending, true},
		{"retrying to failed", models.TaskStatusRetrying, models.TaskStatusFailed, true},
		{"queued to sent invalid", models.TaskStatusQueued, models.TaskStatusSent, false},
		{"sent to failed invalid", models.TaskStatusSent, models.TaskStatusFailed, false},
		{"cancelled to sending invalid", models.TaskStatusCancelled, models.TaskStatusSending, false},
		{"failed to retrying invalid", models.TaskStatusFailed, models.TaskStatusRetrying, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transitionAllowed(tt.from, tt.to))
		})
	}
}

func TestLedger_RetryingRecordsError(t *testing.T) {
	l := NewLedger(makeTasks(1))
	l.MarkSending(0, 1)

	sendErr := models.Errorf(models.KindSend, "connection reset")
	prev, ok := l.MarkRetrying(0, sendErr)
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusSending, prev)

	r, _ := l.Get(0)
	assert.Equal(t, models.KindSend, r.ErrorKind)
	assert.Contains(t, r.Error, "connection reset")
}

func TestLedger_StatsAndSnapshot(t *testing.T) {
	l := NewLedger(makeTasks(4))

	l.MarkSending(1, 1)
	l.MarkSent(1)
	l.MarkSending(3, 1)
	l.MarkFailed(3, errors.New("boom"))
	l.MarkCancelled(2)

	stats := l.Stats()
	assert.Equal(t, Stats{Total: 4, Queued: 1, Sent: 1, Failed: 1, Cancelled: 1}, stats)

	snapshot := l.Snapshot()
	require.Len(t, snapshot, 4)
	for i, r := range snapshot {
		assert.Equal(t, i, r.RowIndex)
	}

	assert.False(t, l.Finalized(), "row 0 is still queued")
}

func TestLedger_WarningsCarriedFromTask(t *testing.T) {
	tasks := makeTasks(1)
	tasks[0].Warnings = []string{"unmatched placeholder {{nickname}} in body"}

	l := NewLedger(tasks)
	r, _ := l.Get(0)
	assert.Equal(t, tasks[0].Warnings, r.Warnings)
}

func TestLedger_UnknownRow(t *testing.T) {
	l := NewLedger(makeTasks(1))

	_, ok := l.Get(42)
	assert.False(t, ok)

	_, ok = l.MarkSent(42)
	assert.False(t, ok)
}
