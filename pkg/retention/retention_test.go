package retention

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mscrnt/cantiming/internal/logging"
)

type fakeStore struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int64
	err     error
}

func (s *fakeStore) DeleteSolvesBefore(t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs = append(s.cutoffs, t)
	return s.n, s.err
}

func TestNewPrunerValidation(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		maxAge time.Duration
		ok     bool
	}{
		{"daily descriptor", "@daily", 24 * time.Hour, true},
		{"five fields", "30 3 * * *", time.Hour, true},
		{"every", "@every 10m", time.Hour, true},
		{"seconds field", "0 30 3 * * *", time.Hour, false},
		{"garbage", "often", time.Hour, false},
		{"zero age", "@daily", 0, false},
		{"negative age", "@daily", -time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPruner(&fakeStore{}, tt.expr, tt.maxAge, nil)
			if (err == nil) != tt.ok {
				t.Errorf("NewPruner(%q, %s) error = %v", tt.expr, tt.maxAge, err)
			}
		})
	}

	if _, err := NewPruner(&fakeStore{}, "@daily", 0, nil); !errors.Is(err, ErrInvalidAge) {
		t.Errorf("zero age error = %v, want ErrInvalidAge", err)
	}
}

func TestRunOnceUsesCutoff(t *testing.T) {
	store := &fakeStore{n: 3}
	p, err := NewPruner(store, "@daily", 30*24*time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	n, err := p.RunOnce()
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if n != 3 {
		t.Errorf("RunOnce() = %d, want 3", n)
	}
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if len(store.cutoffs) != 1 || !store.cutoffs[0].Equal(want) {
		t.Errorf("cutoffs = %v, want [%v]", store.cutoffs, want)
	}
}

func TestJobLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	l, err := logging.New(&buf, "", "info")
	if err != nil {
		t.Fatal(err)
	}

	p, err := NewPruner(&fakeStore{err: errors.New("disk full")}, "@daily", time.Hour, l)
	if err != nil {
		t.Fatal(err)
	}
	p.job()

	if !strings.Contains(buf.String(), "history pruning failed: disk full") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestStartStop(t *testing.T) {
	p, err := NewPruner(&fakeStore{}, "@hourly", time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !p.Next().IsZero() {
		t.Error("Next() before Start should be zero")
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// a second start is a no-op
	if err := p.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if len(p.cron.Entries()) != 1 {
		t.Errorf("entries = %d, want 1", len(p.cron.Entries()))
	}

	next := p.Next()
	if next.IsZero() || next.Sub(time.Now()) > time.Hour {
		t.Errorf("Next() = %v, want within the hour", next)
	}

	p.Stop(time.Second)
	if !p.Next().IsZero() {
		t.Error("Next() after Stop should be zero")
	}
	p.Stop(time.Second)
}
