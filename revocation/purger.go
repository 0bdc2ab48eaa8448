package revocation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PurgerConfig controls a [Purger].
type PurgerConfig struct {
	Interval time.Duration
	// Timeout bounds a single PurgeExpired call. Defaults to Interval.
	Timeout time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
	// OnPurge, when set, is called after every run with its result.
	OnPurge func(removed int, err error)
}

// Purger runs PurgeExpired on a ticker in its own goroutine. Request-path
// calls never wait on it beyond the single store operation it has in flight.
type Purger struct {
	store  Store
	cfg    PurgerConfig
	stop   chan struct{}
	done   chan struct{}
	start  sync.Once
	closer sync.Once
}

// NewPurger returns a stopped purger for store.
func NewPurger(store Store, cfg PurgerConfig) *Purger {
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Purger{
		store: store,
		cfg:   cfg,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the background loop. Calling Start more than once has no
// further effect. A non-positive interval leaves the purger idle.
func (p *Purger) Start() {
	p.start.Do(func() {
		if p.cfg.Interval <= 0 {
			close(p.done)
			return
		}
		go p.run()
	})
}

func (p *Purger) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
			_, _ = p.RunOnce(ctx)
			cancel()
		}
	}
}

// RunOnce purges records expired as of now and reports the result.
func (p *Purger) RunOnce(ctx context.Context) (int, error) {
	removed, err := p.store.PurgeExpired(ctx, p.cfg.Now())
	if err != nil {
		p.cfg.Logger.Warn("revocation purge failed", "error", err, "removed", removed)
	} else if removed > 0 {
		p.cfg.Logger.Debug("revocation purge", "removed", removed)
	}
	if p.cfg.OnPurge != nil {
		p.cfg.OnPurge(removed, err)
	}
	return removed, err
}

// Stop ends the loop and waits for an in-flight run to finish. Stop is safe to
// call more than once and before Start.
func (p *Purger) Stop() {
	p.closer.Do(func() {
		close(p.stop)
		p.start.Do(func() { close(p.done) })
	})
	<-p.done
}
