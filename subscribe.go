package vault

import (
	"context"
	"sync"
)

// Subscription delivers snapshots of a store query. C receives the current
// result immediately and again after every committed write that could change
// it. Only the latest snapshot is buffered: a slow reader skips intermediate
// states but never blocks writers. C is closed by Close or when the store
// closes.
type Subscription struct {
	C <-chan []SyncedRecord

	query string
	ch    chan []SyncedRecord
	hub   *subscriptionHub
	once  sync.Once
}

// Query returns the search text the subscription follows.
func (sub *Subscription) Query() string {
	return sub.query
}

// Close stops delivery and closes C. Safe to call more than once.
func (sub *Subscription) Close() {
	sub.hub.remove(sub)
}

// Subscribe follows QuerySearch(query). A blank query follows QueryAll.
func (s *Store) Subscribe(query string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	snapshot, err := s.query(context.Background(), query)
	if err != nil {
		return nil, err
	}

	ch := make(chan []SyncedRecord, 1)
	sub := &Subscription{C: ch, query: query, ch: ch, hub: s.subs}
	s.subs.add(sub)
	s.subs.deliver(sub, snapshot)
	return sub, nil
}

// publish pushes fresh snapshots to subscriptions whose query satisfies
// affected. Callers hold s.mu for writing, so snapshots reflect committed state
// and are delivered in commit order.
func (s *Store) publish(affected func(query string) bool) {
	targets := s.subs.matching(affected)
	if len(targets) == 0 {
		return
	}

	snapshots := make(map[string][]SyncedRecord)
	for _, sub := range targets {
		key := normalizeQuery(sub.query)
		snap, ok := snapshots[key]
		if !ok {
			var err error
			snap, err = s.query(context.Background(), key)
			if err != nil {
				continue
			}
			snapshots[key] = snap
		}
		s.subs.deliver(sub, snap)
	}
}

type subscriptionHub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newSubscriptionHub() *subscriptionHub {
	return &subscriptionHub{subs: make(map[*Subscription]struct{})}
}

func (h *subscriptionHub) add(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = struct{}{}
}

func (h *subscriptionHub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	sub.once.Do(func() { close(sub.ch) })
}

func (h *subscriptionHub) matching(affected func(query string) bool) []*Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*Subscription
	for sub := range h.subs {
		if affected(sub.query) {
			out = append(out, sub)
		}
	}
	return out
}

// deliver replaces any undelivered snapshot with snap.
func (h *subscriptionHub) deliver(sub *Subscription, snap []SyncedRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- snap
}

func (h *subscriptionHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		delete(h.subs, sub)
		sub.once.Do(func() { close(sub.ch) })
	}
}
