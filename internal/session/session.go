// Package session persists conversation state, one label per chat identity.
package session

import (
	"context"
	"errors"
)

// State identifies a conversation step for a chat.
type State string

const (
	// StateStart is the initial state; it is also re-entered after a
	// completed pickup order.
	StateStart State = "start"
	// StateMenu means the chat is browsing the paginated menu.
	StateMenu State = "menu"
	// StateProduct means a product detail view is shown.
	StateProduct State = "product"
	// StateCart means the cart view is shown.
	StateCart State = "cart"
	// StateAwaitEmail means the bot is waiting for a customer email.
	StateAwaitEmail State = "await_email"
	// StateAwaitAddress means the bot is waiting for an address or location.
	StateAwaitAddress State = "await_address"
	// StateAwaitDelivery means the bot is waiting for a pickup/delivery choice.
	StateAwaitDelivery State = "await_delivery"
)

// Known reports whether s is one of the defined state labels. A persisted
// label outside this set indicates a deployment mismatch and is treated as a
// contract error by the engine.
func (s State) Known() bool {
	switch s {
	case StateStart, StateMenu, StateProduct, StateCart,
		StateAwaitEmail, StateAwaitAddress, StateAwaitDelivery:
		return true
	}
	return false
}

// ErrNotFound is returned by Get when the chat has no persisted session yet.
var ErrNotFound = errors.New("session not found")

// Store is the persistence contract: one state label per chat identity.
// Last write wins; serialization of read-modify-write sequences for a single
// chat is the caller's responsibility.
type Store interface {
	Get(ctx context.Context, chatID int64) (State, error)
	Set(ctx context.Context, chatID int64, st State) error
}
