package bus

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quick-tools-overlay/src/messages"
)

var (
	ErrTopicClosed    = errors.New("bus: topic closed")
	ErrPublishTimeout = errors.New("bus: publish timed out")
	ErrSubscriberFull = errors.New("bus: subscriber buffer full, message dropped")
)

// Envelope wraps a message with routing metadata.
type Envelope[T messages.Message] struct {
	ID      string
	From    string
	Sent    time.Time
	Message T
}

// Topic is a one-way stream of a single message kind. Each subscriber has its
// own buffered channel, so delivery is FIFO per sender.
type Topic[T messages.Message] struct {
	name        string
	mu          sync.RWMutex
	subs        map[uint64]*Subscription[T]
	nextID      uint64
	closed      bool
	sendTimeout time.Duration
}

func newTopic[T messages.Message](name string, sendTimeout time.Duration) *Topic[T] {
	return &Topic[T]{
		name:        name,
		subs:        make(map[uint64]*Subscription[T]),
		sendTimeout: sendTimeout,
	}
}

// Name returns the topic name.
func (t *Topic[T]) Name() string { return t.name }

// Subscribe registers a named subscriber with the given buffer size.
func (t *Topic[T]) Subscribe(name string, buffer int) (*Subscription[T], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTopicClosed
	}
	if buffer < 0 {
		buffer = 0
	}
	t.nextID++
	s := &Subscription[T]{
		topic: t,
		id:    t.nextID,
		name:  name,
		ch:    make(chan Envelope[T], buffer),
	}
	t.subs[s.id] = s
	log.Printf("Bus: %s subscribed to %s (buffer %d)", name, t.name, buffer)
	return s, nil
}

// Publish delivers msg to every current subscriber. A subscriber whose buffer
// stays full past the send timeout is skipped and reported in the error. With
// a zero send timeout Publish never waits: full subscribers miss the message.
func (t *Topic[T]) Publish(from string, msg T) error {
	env := Envelope[T]{
		ID:      uuid.NewString(),
		From:    from,
		Sent:    time.Now(),
		Message: msg,
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return ErrTopicClosed
	}

	log.Printf("Bus: %s -> %s: %s (%s)", from, t.name, msg.Type(), env.ID)

	var missed []string
	for _, s := range t.subs {
		if !t.deliver(s, env) {
			missed = append(missed, s.name)
		}
	}
	if len(missed) == 0 {
		return nil
	}
	if t.sendTimeout <= 0 {
		log.Printf("Bus: dropped %s on %s for %s", env.ID, t.name, strings.Join(missed, ", "))
		return fmt.Errorf("%w: %s", ErrSubscriberFull, strings.Join(missed, ", "))
	}
	return fmt.Errorf("%w: %s", ErrPublishTimeout, strings.Join(missed, ", "))
}

func (t *Topic[T]) deliver(s *Subscription[T], env Envelope[T]) bool {
	if t.sendTimeout <= 0 {
		select {
		case s.ch <- env:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(t.sendTimeout)
	defer timer.Stop()
	select {
	case s.ch <- env:
		return true
	case <-timer.C:
		return false
	}
}

// Pending returns the number of queued envelopes per subscriber.
func (t *Topic[T]) Pending() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := make(map[string]int, len(t.subs))
	for _, s := range t.subs {
		stats[s.name] = len(s.ch)
	}
	return stats
}

func (t *Topic[T]) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.subs[id]
	if !ok {
		return
	}
	delete(t.subs, id)
	close(s.ch)
	log.Printf("Bus: %s unsubscribed from %s", s.name, t.name)
}

func (t *Topic[T]) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	for id, s := range t.subs {
		close(s.ch)
		delete(t.subs, id)
	}
}

// Subscription is one subscriber's view of a topic.
type Subscription[T messages.Message] struct {
	topic *Topic[T]
	id    uint64
	name  string
	ch    chan Envelope[T]
	once  sync.Once
}

// C returns the delivery channel. It is closed on Unsubscribe or when the bus
// closes.
func (s *Subscription[T]) C() <-chan Envelope[T] { return s.ch }

// Unsubscribe detaches the subscriber. Calling it again, or after the bus
// closed, is a no-op.
func (s *Subscription[T]) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() { s.topic.remove(s.id) })
}
