package location

import (
	"context"
	"sync"
	"time"

	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geo"
)

// Feed is the Provider implementation backed by device location reports
// posted over the API. It keeps the last fix per cleaner and fans reports
// out to watch subscriptions.
type Feed struct {
	mu        sync.RWMutex
	last      map[string]Fix
	denied    map[string]bool
	subs      map[string]map[*feedSubscription]struct{}
	maxFixAge time.Duration
	now       func() time.Time
}

// NewFeed creates a Feed. maxFixAge bounds how old a report may be before
// Current treats it as unavailable.
func NewFeed(maxFixAge time.Duration) *Feed {
	return &Feed{
		last:      make(map[string]Fix),
		denied:    make(map[string]bool),
		subs:      make(map[string]map[*feedSubscription]struct{}),
		maxFixAge: maxFixAge,
		now:       time.Now,
	}
}

// Report records a device position reading and fans it out to subscribers.
func (f *Feed) Report(cleanerID string, fix Fix) {
	if fix.ReportedAt.IsZero() {
		fix.ReportedAt = f.now()
	}

	f.mu.Lock()
	f.last[cleanerID] = fix
	f.denied[cleanerID] = false
	targets := make([]*feedSubscription, 0, len(f.subs[cleanerID]))
	for sub := range f.subs[cleanerID] {
		targets = append(targets, sub)
	}
	f.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- fix:
		default:
			// Drop rather than block the reporter; the next fix supersedes it.
		}
	}
}

// ReportPermissionDenied records that the device refused location access.
func (f *Feed) ReportPermissionDenied(cleanerID string) {
	f.mu.Lock()
	f.denied[cleanerID] = true
	f.mu.Unlock()
}

// Current implements Provider.
func (f *Feed) Current(_ context.Context, cleanerID string) (Fix, error) {
	f.mu.RLock()
	denied := f.denied[cleanerID]
	fix, ok := f.last[cleanerID]
	f.mu.RUnlock()

	if denied {
		return Fix{}, ErrPermissionDenied
	}
	if !ok {
		return Fix{}, ErrUnavailable
	}
	if f.maxFixAge > 0 && f.now().Sub(fix.ReportedAt) > f.maxFixAge {
		return Fix{}, ErrUnavailable
	}
	return fix, nil
}

// Watch implements Provider. Each subscription runs its own consumer
// goroutine so callbacks never block reporters, and Stop from inside a
// callback cannot deadlock.
func (f *Feed) Watch(cleanerID string, opts WatchOptions, fn func(Fix)) (Subscription, error) {
	f.mu.RLock()
	if f.denied[cleanerID] {
		f.mu.RUnlock()
		return nil, ErrPermissionDenied
	}
	f.mu.RUnlock()

	sub := &feedSubscription{
		feed:      f,
		cleanerID: cleanerID,
		ch:        make(chan Fix, 8),
		done:      make(chan struct{}),
	}

	f.mu.Lock()
	if f.subs[cleanerID] == nil {
		f.subs[cleanerID] = make(map[*feedSubscription]struct{})
	}
	f.subs[cleanerID][sub] = struct{}{}
	f.mu.Unlock()

	go sub.run(opts, fn)

	return sub, nil
}

type feedSubscription struct {
	feed      *Feed
	cleanerID string
	ch        chan Fix
	done      chan struct{}
	stopOnce  sync.Once
}

// Stop implements Subscription; idempotent.
func (s *feedSubscription) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)

		s.feed.mu.Lock()
		delete(s.feed.subs[s.cleanerID], s)
		if len(s.feed.subs[s.cleanerID]) == 0 {
			delete(s.feed.subs, s.cleanerID)
		}
		s.feed.mu.Unlock()
	})
}

func (s *feedSubscription) run(opts WatchOptions, fn func(Fix)) {
	var (
		delivered     bool
		lastCoord     geo.Coordinate
		lastDelivered time.Time
	)

	for {
		select {
		case <-s.done:
			return
		case fix := <-s.ch:
			if delivered {
				if fix.ReportedAt.Sub(lastDelivered) < opts.MinInterval {
					continue
				}
				if geo.DistanceMeters(lastCoord, fix.Coordinate) < opts.MinDistanceMeters {
					continue
				}
			}
			delivered = true
			lastCoord = fix.Coordinate
			lastDelivered = fix.ReportedAt
			fn(fix)
		}
	}
}
