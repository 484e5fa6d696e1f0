package notify

import (
	"github.com/ethereum/go-ethereum/common"
)

// EventCode identifies the lifecycle step a notification reports
type EventCode string

const (
	TxSent      EventCode = "txSent"
	TxConfirmed EventCode = "txConfirmed"
	TxFailed    EventCode = "txFailed"
	TxCancelled EventCode = "txCancelled"
)

// Type controls how a notification is rendered
type Type string

const (
	TypePending Type = "pending"
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeHint    Type = "hint"
)

// Event is one visual state of a notification
type Event struct {
	Code    EventCode
	Type    Type
	Message string
}

// Terminal reports whether the event ends a notification's lifecycle
func (e Event) Terminal() bool {
	return e.Type == TypeSuccess || e.Type == TypeError
}

// Notification is a live banner that can be moved to a new state or torn down
type Notification interface {
	Update(Event)
	Dismiss()
}

// Notifier is the side-channel through which transaction progress is shown
type Notifier interface {
	// Hash starts a notification driven by the transaction hash alone.
	// ok is false when the notifier has no native support for it.
	Hash(hash common.Hash) (n Notification, ok bool)
	// Notify starts a custom notification in the given state
	Notify(Event) Notification
}

// Nop discards every notification
type Nop struct{}

func (Nop) Hash(common.Hash) (Notification, bool) { return nopNotification{}, false }

func (Nop) Notify(Event) Notification { return nopNotification{} }

type nopNotification struct{}

func (nopNotification) Update(Event) {}

func (nopNotification) Dismiss() {}
