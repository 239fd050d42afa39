package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/set-night/pagecraft/internal/domain"
)

type opCounters struct {
	succeeded int
	failed    int
	bytes     int64
	duration  time.Duration
}

// Stats aggregates operation records in memory since process start.
type Stats struct {
	mu       sync.Mutex
	started  time.Time
	ops      map[domain.Operation]*opCounters
	failures map[string]int
	users    map[int64]struct{}
}

func NewStats() *Stats {
	return &Stats{
		started:  time.Now(),
		ops:      make(map[domain.Operation]*opCounters),
		failures: make(map[string]int),
		users:    make(map[int64]struct{}),
	}
}

func (s *Stats) Record(_ context.Context, rec domain.OperationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.ops[rec.Op]
	if !ok {
		c = &opCounters{}
		s.ops[rec.Op] = c
	}
	s.users[rec.UserID] = struct{}{}
	c.duration += rec.Duration

	if rec.State == domain.StateSucceeded {
		c.succeeded++
		c.bytes += rec.OutputBytes
		return
	}
	c.failed++
	s.failures[rec.ErrorKind]++
}

// Report renders the counters for the admin /stat command.
func (s *Stats) Report(sessions int, sessionBytes int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("📊 *Statistics*\n\n")
	fmt.Fprintf(&b, "*Uptime:* %s\n", time.Since(s.started).Round(time.Second))
	fmt.Fprintf(&b, "*Active sessions:* %d (%s)\n", sessions, formatBytes(sessionBytes))
	fmt.Fprintf(&b, "*Users served:* %d\n", len(s.users))

	if len(s.ops) == 0 {
		b.WriteString("\nNo operations yet.")
		return b.String()
	}

	ops := make([]domain.Operation, 0, len(s.ops))
	for op := range s.ops {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })

	b.WriteString("\n*Operations:*\n")
	for _, op := range ops {
		c := s.ops[op]
		runs := c.succeeded + c.failed
		fmt.Fprintf(&b, "• %s: %d ok, %d failed, avg %s, %s out\n",
			escape(string(op)), c.succeeded, c.failed,
			(c.duration / time.Duration(runs)).Round(time.Millisecond), formatBytes(c.bytes))
	}

	if len(s.failures) > 0 {
		kinds := make([]string, 0, len(s.failures))
		for k := range s.failures {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)

		b.WriteString("\n*Failures:*\n")
		for _, k := range kinds {
			fmt.Fprintf(&b, "• %s: %d\n", k, s.failures[k])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Recorders fans one record out to several recorders; nil entries are
// skipped.
type Recorders []OperationRecorder

func (rs Recorders) Record(ctx context.Context, rec domain.OperationRecord) {
	for _, r := range rs {
		if r != nil {
			r.Record(ctx, rec)
		}
	}
}
