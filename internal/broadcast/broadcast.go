// Package broadcast fans newly ingested messages out to every attached
// stream session. Each subscription has its own bounded queue so one
// slow client can never stall the publisher; when a queue overflows,
// the oldest undelivered messages are dropped and the subscriber is
// handed an explicit gap marker instead.
package broadcast

import (
	"sync"

	"github.com/alfredjeanlab/relay/internal/model"
)

// DefaultQueueSize is the per-subscriber queue capacity used when the
// broadcaster is constructed with a non-positive size.
const DefaultQueueSize = 100

// Item is one unit of delivery to a subscriber: either a message or a
// gap marker indicating that older messages were dropped.
type Item struct {
	Gap bool
	Msg *model.Message
}

// Subscription is one subscriber's bounded delivery queue. It is owned
// jointly by the broadcaster (publish side) and a stream session
// (consume side).
type Subscription struct {
	mu      sync.Mutex
	queue   []*model.Message
	gapped  bool
	maxSize int

	ready chan struct{}
	done  chan struct{}
}

// Ready returns a channel that receives a signal when the subscription
// has pending items. After a receive, drain with Next until it reports
// no more items.
func (s *Subscription) Ready() <-chan struct{} { return s.ready }

// Done is closed when the subscription is detached, either by
// Unsubscribe or by broadcaster shutdown.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Next pops the next pending item. A pending gap marker is always
// delivered before the messages retained after it. The second return
// is false when nothing is pending.
func (s *Subscription) Next() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gapped {
		s.gapped = false
		return Item{Gap: true}, true
	}
	if len(s.queue) == 0 {
		return Item{}, false
	}
	m := s.queue[0]
	s.queue = s.queue[1:]
	return Item{Msg: m}, true
}

// offer enqueues a message, dropping the oldest entry and recording a
// gap when the queue is full. Called with the broadcaster holding its
// read lock; never blocks.
func (s *Subscription) offer(m *model.Message) {
	s.mu.Lock()
	if len(s.queue) >= s.maxSize {
		s.queue = s.queue[1:]
		s.gapped = true
	}
	s.queue = append(s.queue, m)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Broadcaster distributes messages to all attached subscriptions.
type Broadcaster struct {
	mu        sync.RWMutex
	subs      map[*Subscription]struct{}
	queueSize int
	closed    bool
}

// New returns a broadcaster whose subscriptions buffer up to queueSize
// messages each. A non-positive queueSize selects DefaultQueueSize.
func New(queueSize int) *Broadcaster {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Broadcaster{
		subs:      make(map[*Subscription]struct{}),
		queueSize: queueSize,
	}
}

// Subscribe attaches a new subscription. It receives only messages
// published after it attaches; pair it with a journal snapshot to
// reconstruct history. On a closed broadcaster the returned
// subscription is already done.
func (b *Broadcaster) Subscribe() *Subscription {
	s := &Subscription{
		maxSize: b.queueSize,
		ready:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.done)
		return s
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe detaches the subscription and closes its Done channel.
// It is idempotent; publishes racing with it are dropped harmlessly.
func (b *Broadcaster) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	_, attached := b.subs[s]
	delete(b.subs, s)
	b.mu.Unlock()

	if attached {
		close(s.done)
	}
}

// Publish enqueues the message on every live subscription. It never
// blocks on a slow consumer: full queues drop their oldest entries.
func (b *Broadcaster) Publish(m *model.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		s.offer(m)
	}
}

// Close detaches every subscription. Subsequent Subscribe calls return
// subscriptions that are already done; Publish becomes a no-op.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for s := range subs {
		close(s.done)
	}
}

// Subscribers reports the number of attached subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
