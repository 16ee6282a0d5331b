package bus

import (
	"time"

	"quick-tools-overlay/src/messages"
)

const (
	DefaultBuffer      = 16
	defaultSendTimeout = 5 * time.Second
)

// Bus carries the two host<->overlay streams: configuration in, tool taps out.
// The transport behind it (in-process, TCP bridge, test double) is invisible
// to the controller.
type Bus struct {
	config *Topic[messages.ConfigurationUpdate]
	events *Topic[messages.ToolTapped]
}

// New creates a bus with the default send timeout.
func New() *Bus { return NewWithTimeout(defaultSendTimeout) }

// NewWithTimeout creates a bus whose configuration publishes wait at most d
// per subscriber. Tool taps are published from the overlay's event loop and
// never wait: a subscriber with a full buffer misses the tap.
func NewWithTimeout(d time.Duration) *Bus {
	return &Bus{
		config: newTopic[messages.ConfigurationUpdate]("config", d),
		events: newTopic[messages.ToolTapped]("events", 0),
	}
}

// PublishConfiguration sends a tool-list payload towards the overlay.
func (b *Bus) PublishConfiguration(from, payload string) error {
	return b.config.Publish(from, messages.ConfigurationUpdate{ToolListJSON: payload})
}

// SubscribeConfiguration registers a configuration consumer.
func (b *Bus) SubscribeConfiguration(name string) (*Subscription[messages.ConfigurationUpdate], error) {
	return b.config.Subscribe(name, DefaultBuffer)
}

// PublishToolTapped sends a tool tap towards the host.
func (b *Bus) PublishToolTapped(m messages.ToolTapped) error {
	return b.events.Publish(messages.SenderOverlay, m)
}

// SubscribeToolTapped registers a tool-tap consumer.
func (b *Bus) SubscribeToolTapped(name string) (*Subscription[messages.ToolTapped], error) {
	return b.events.Subscribe(name, DefaultBuffer)
}

// Stats returns queued envelopes per topic and subscriber.
func (b *Bus) Stats() map[string]map[string]int {
	return map[string]map[string]int{
		b.config.Name(): b.config.Pending(),
		b.events.Name(): b.events.Pending(),
	}
}

// Close closes both topics and every subscription channel.
func (b *Bus) Close() {
	b.config.close()
	b.events.close()
}
