package session

import "sync"

// resolveBroker wakes requests waiting for a session's role lookup.
type resolveBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func newResolveBroker() *resolveBroker {
	return &resolveBroker{subs: make(map[string]map[chan struct{}]struct{})}
}

func (b *resolveBroker) subscribe(id string) chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	set, ok := b.subs[id]
	if !ok {
		set = make(map[chan struct{}]struct{})
		b.subs[id] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *resolveBroker) unsubscribe(id string, ch chan struct{}) {
	b.mu.Lock()
	if set, ok := b.subs[id]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(b.subs, id)
		}
	}
	b.mu.Unlock()
}

func (b *resolveBroker) notify(id string) {
	b.mu.Lock()
	for ch := range b.subs[id] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}
