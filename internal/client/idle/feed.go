package idle

import "sync"

// ActivitySource delivers user-activity events. Subscribe returns a function
// that removes the listener.
type ActivitySource interface {
	Subscribe(fn func()) (unsubscribe func())
}

// Feed is an ActivitySource fed by Publish. Listeners run on the publishing
// goroutine, outside the feed's lock.
type Feed struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int]func())}
}

func (f *Feed) Subscribe(fn func()) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Publish notifies every current listener.
func (f *Feed) Publish() {
	f.mu.Lock()
	fns := make([]func(), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Listeners returns the number of subscribed listeners.
func (f *Feed) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
