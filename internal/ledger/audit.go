package ledger

import (
	"strings"
	"sync"
	"time"
)

// AuditLog is an append-only list of "<timestamp> - <event>" lines.
type AuditLog struct {
	mu    sync.Mutex
	lines []string
	now   func() time.Time
}

func NewAuditLog(now func() time.Time) *AuditLog {
	if now == nil {
		now = time.Now
	}
	return &AuditLog{now: now}
}

func (a *AuditLog) Append(event string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lines = append(a.lines, a.now().Format(time.RFC3339)+" - "+event)
}

// Lines returns a copy of the log.
func (a *AuditLog) Lines() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.lines))
	copy(out, a.lines)
	return out
}

func (a *AuditLog) String() string {
	return strings.Join(a.Lines(), "\n")
}
