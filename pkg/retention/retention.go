// Package retention prunes old solves from the history database on a cron
// schedule.
package retention

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mscrnt/cantiming/internal/logging"
	"github.com/robfig/cron/v3"
)

// ErrInvalidAge is returned for a non-positive maximum age
var ErrInvalidAge = errors.New("retention age must be positive")

// Store removes records older than a cutoff
type Store interface {
	DeleteSolvesBefore(t time.Time) (int64, error)
}

// parser accepts the standard five cron fields and descriptors like @daily
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Pruner deletes solves older than MaxAge every time its schedule fires
type Pruner struct {
	cron   *cron.Cron
	store  Store
	maxAge time.Duration
	expr   string
	logger logging.Logger

	mu      sync.Mutex
	entry   cron.EntryID
	running bool
	now     func() time.Time
}

// NewPruner validates the cron expression and returns a stopped pruner
func NewPruner(store Store, expr string, maxAge time.Duration, logger logging.Logger) (*Pruner, error) {
	if maxAge <= 0 {
		return nil, ErrInvalidAge
	}
	if _, err := parser.Parse(expr); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Pruner{
		cron:   cron.New(cron.WithParser(parser)),
		store:  store,
		maxAge: maxAge,
		expr:   expr,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Start registers the job and starts the scheduler
func (p *Pruner) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	id, err := p.cron.AddFunc(p.expr, p.job)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	p.entry = id
	p.running = true
	p.cron.Start()

	p.logger.Infof("history pruning scheduled (%s), keeping %s", p.expr, p.maxAge)
	return nil
}

// Stop stops the scheduler and waits up to timeout for a running prune
func (p *Pruner) Stop(timeout time.Duration) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cron.Remove(p.entry)
	p.mu.Unlock()

	ctx := p.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(timeout):
		p.logger.Warnf("timeout waiting for history pruning to finish")
	}
}

// Next returns when the job fires next, or the zero time when stopped
func (p *Pruner) Next() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return time.Time{}
	}
	return p.cron.Entry(p.entry).Next
}

// RunOnce deletes every solve older than the maximum age
func (p *Pruner) RunOnce() (int64, error) {
	cutoff := p.now().Add(-p.maxAge)
	n, err := p.store.DeleteSolvesBefore(cutoff)
	if err != nil {
		return 0, err
	}
	p.logger.Debugf("pruned %d solves recorded before %s", n, cutoff.Format(time.RFC3339))
	return n, nil
}

func (p *Pruner) job() {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("panic in history pruning: %v", r)
		}
	}()

	n, err := p.RunOnce()
	if err != nil {
		p.logger.Errorf("history pruning failed: %v", err)
		return
	}
	if n > 0 {
		p.logger.Infof("pruned %d old solves", n)
	}
}
