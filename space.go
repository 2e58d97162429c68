package qec

import (
	"sync"
	"time"

	"github.com/theapemachine/errnie"
)

// BroadcastGroup handles pub/sub
type BroadcastGroup struct {
	mu       sync.RWMutex
	ID       string
	channels []chan Result
	TTL      time.Duration
	LastUsed time.Time
}

// Result wraps a job value with metadata
type Result struct {
	Value     any
	Error     error
	CreatedAt time.Time
	TTL       time.Duration
}

// ResultSpace handles job result storage and messaging
type ResultSpace struct {
	mu      sync.RWMutex
	values  map[string]Result
	waiting map[string][]chan Result
	groups  map[string]*BroadcastGroup
	wg      sync.WaitGroup
	done    chan struct{}
	once    sync.Once
}

func NewResultSpace() *ResultSpace {
	rs := &ResultSpace{
		values:  make(map[string]Result),
		waiting: make(map[string][]chan Result),
		groups:  make(map[string]*BroadcastGroup),
		done:    make(chan struct{}),
	}

	rs.wg.Add(1)
	go func() {
		defer rs.wg.Done()
		rs.cleanup()
	}()

	return rs
}

// Store stores a value and wakes everyone awaiting it
func (rs *ResultSpace) Store(id string, value any, err error, ttl time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	r := Result{
		Value:     value,
		Error:     err,
		CreatedAt: time.Now(),
		TTL:       ttl,
	}
	rs.values[id] = r

	if channels, ok := rs.waiting[id]; ok {
		errnie.Info("delivering result for %s to %d waiters", id, len(channels))
		for _, ch := range channels {
			ch <- r
			close(ch)
		}
		delete(rs.waiting, id)
	}
}

// Await returns a channel that will receive the value when it's available
func (rs *ResultSpace) Await(id string) chan Result {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	ch := make(chan Result, 1)

	if r, ok := rs.values[id]; ok {
		ch <- r
		close(ch)
		return ch
	}

	rs.waiting[id] = append(rs.waiting[id], ch)
	return ch
}

// Forget drops a stored value once its consumer is done with it
func (rs *ResultSpace) Forget(id string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.values, id)
}

func (rs *ResultSpace) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rs.done:
			return
		case <-ticker.C:
			rs.mu.Lock()
			rs.cleanupExpiredValues()
			rs.cleanupExpiredGroups()
			rs.mu.Unlock()
		}
	}
}

func (rs *ResultSpace) cleanupExpiredValues() {
	now := time.Now()
	for id, r := range rs.values {
		if r.TTL > 0 && now.Sub(r.CreatedAt) > r.TTL {
			delete(rs.values, id)
		}
	}
}

func (rs *ResultSpace) cleanupExpiredGroups() {
	now := time.Now()
	for id, group := range rs.groups {
		group.mu.Lock()
		if group.TTL > 0 && now.Sub(group.LastUsed) > group.TTL {
			for _, ch := range group.channels {
				close(ch)
			}
			group.channels = nil
			delete(rs.groups, id)
		}
		group.mu.Unlock()
	}
}

func (rs *ResultSpace) CreateBroadcastGroup(id string, ttl time.Duration) *BroadcastGroup {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	group := &BroadcastGroup{
		ID:       id,
		channels: make([]chan Result, 0),
		TTL:      ttl,
		LastUsed: time.Now(),
	}
	rs.groups[id] = group
	return group
}

// Send delivers to every subscriber, dropping the value for subscribers whose buffer is full
func (bg *BroadcastGroup) Send(r Result) {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	bg.LastUsed = time.Now()
	for _, ch := range bg.channels {
		select {
		case ch <- r:
		default:
		}
	}
}

// Close closes every subscriber channel
func (bg *BroadcastGroup) Close() {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	for _, ch := range bg.channels {
		close(ch)
	}
	bg.channels = nil
}

func (rs *ResultSpace) Subscribe(groupID string) chan Result {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	ch := make(chan Result, 64)
	if group, ok := rs.groups[groupID]; ok {
		group.mu.Lock()
		group.channels = append(group.channels, ch)
		group.mu.Unlock()
	}
	return ch
}

func (rs *ResultSpace) Close() {
	rs.once.Do(func() {
		close(rs.done)
	})
	rs.wg.Wait()

	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, group := range rs.groups {
		group.Close()
	}
	rs.groups = map[string]*BroadcastGroup{}
}
