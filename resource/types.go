package resource

import "github.com/wippyai/scripthost/boundary"

// EventType identifies a registry lifecycle event.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	}
	return "unknown"
}

// Event describes one registry lifecycle change.
type Event struct {
	Value    any
	TypeName string
	Handle   boundary.Handle
	Owner    boundary.ContextID
	Type     EventType
}

// Observer receives registry lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by values that need cleanup when their
// handle is released.
type Dropper interface {
	Drop()
}

// Leak is an entry that was still live when its owner was released.
type Leak struct {
	TypeName string
	Handle   boundary.Handle
	Owner    boundary.ContextID
}
