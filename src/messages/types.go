package messages

// Message is the base interface for everything carried on the bus
type Message interface {
	Type() string
}

// MessageType constants for type identification
const (
	TypeConfigurationUpdate = "ConfigurationUpdate"
	TypeToolTapped          = "ToolTapped"
)

// ConfigurationUpdate - sent by the host when the tool list changes.
// ToolListJSON is the raw wire payload; the controller parses it leniently.
type ConfigurationUpdate struct {
	ToolListJSON string
}

func (m ConfigurationUpdate) Type() string { return TypeConfigurationUpdate }

// ToolTapped - sent by the overlay when a menu entry is tapped
type ToolTapped struct {
	ToolID string
}

func (m ToolTapped) Type() string { return TypeToolTapped }

// Sender names used in envelopes
const (
	SenderHost    = "host"
	SenderOverlay = "overlay"
	SenderBridge  = "bridge"
)
