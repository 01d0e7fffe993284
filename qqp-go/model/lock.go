package model

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qqpair/qqpair/qqp-golib/errors"
)

// Lock serializes training across processes with a marker file. A process
// that dies while holding it leaves the marker behind, and the marker has
// to be removed by hand.
type Lock struct {
	Path     string
	Interval time.Duration
	// Sleep waits between polls; tests replace it
	Sleep func(ctx context.Context, d time.Duration) error

	log  *zap.Logger
	mu   sync.Mutex
	held bool
}

// NewLock returns a lock on the marker file at path, polled every interval.
func NewLock(path string, interval time.Duration, log *zap.Logger) *Lock {
	if log == nil {
		log = zap.NewNop()
	}
	return &Lock{
		Path:     path,
		Interval: interval,
		Sleep:    sleepContext,
		log:      log,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Acquire creates the marker, waiting for as long as another holder keeps
// it. It fails if this Lock is already held.
func (l *Lock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return errors.Kindf(errors.InvariantViolation, "lock %s is already held by this process", l.Path)
	}

	for {
		f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			if err := f.Close(); err != nil {
				os.Remove(l.Path)
				return errors.Wrapf(err, "error creating lock %s", l.Path)
			}
			l.held = true
			return nil
		}
		if !os.IsExist(err) {
			return errors.Wrapf(err, "error creating lock %s", l.Path)
		}

		l.log.Info("model is running, waiting", zap.String("lock", l.Path), zap.Duration("interval", l.Interval))
		if err := l.Sleep(ctx, l.Interval); err != nil {
			return err
		}
	}
}

// Release removes the marker.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return errors.Kindf(errors.InvariantViolation, "lock %s is not held", l.Path)
	}
	l.held = false
	if err := os.Remove(l.Path); err != nil {
		return errors.Wrapf(err, "error removing lock %s", l.Path)
	}
	return nil
}

// Do runs fn while holding the lock. The marker is removed whether or not
// fn succeeds.
func (l *Lock) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer errors.Defer(&err, l.Release)
	return fn(ctx)
}
