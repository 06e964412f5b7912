// Package engine is the conversation state machine. Every inbound chat
// event passes through Handle, which serializes per chat, loads the
// persisted state, runs the state's handler, and persists the returned
// next state only when the handler succeeds.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/intrening/pizzabot/core/logger"
	"github.com/intrening/pizzabot/internal/delivery"
	"github.com/intrening/pizzabot/internal/elasticpath"
	"github.com/intrening/pizzabot/internal/session"
)

const msgTryAgain = "Something went wrong, please try again."

// Options carries tunables and collaborators for the engine.
type Options struct {
	Store    session.Store
	Commerce Commerce
	Geocoder Geocoder
	Renderer Renderer
	Payments Payments
	FollowUp FollowUps

	PageSize int
	Fees     delivery.Fees
	Currency string
}

// Engine dispatches chat events by persisted state.
type Engine struct {
	store    session.Store
	commerce Commerce
	geo      Geocoder
	render   Renderer
	payments Payments
	followUp FollowUps

	pageSize int
	fees     delivery.Fees
	currency string

	// locks grows one mutex per chat ever seen and is never pruned;
	// a mutex cannot be dropped safely while a handler may hold it,
	// and the footprint is bounded by the chat population.
	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	// scratch holds event-local side-channel data between adjacent
	// events of one chat (pending delivery target, last viewed page
	// and product). It is never persisted; the durable layout stays
	// one state label per chat. Entries are dropped when the chat
	// returns to the start state.
	scratchMu sync.Mutex
	scratch   map[int64]*chatScratch
}

type chatScratch struct {
	lastPage    int
	lastProduct string

	pending *pendingOrder
}

type pendingOrder struct {
	point    delivery.Point
	pizzeria elasticpath.Pizzeria
	tier     delivery.Tier
}

// New builds an Engine. PageSize must be positive.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Commerce == nil || opts.Geocoder == nil ||
		opts.Renderer == nil || opts.Payments == nil || opts.FollowUp == nil {
		return nil, errors.New("engine: all collaborators are required")
	}
	if opts.PageSize <= 0 {
		return nil, fmt.Errorf("engine: page size must be positive, got %d", opts.PageSize)
	}
	return &Engine{
		store:    opts.Store,
		commerce: opts.Commerce,
		geo:      opts.Geocoder,
		render:   opts.Renderer,
		payments: opts.Payments,
		followUp: opts.FollowUp,
		pageSize: opts.PageSize,
		fees:     opts.Fees,
		currency: opts.Currency,
		locks:    make(map[int64]*sync.Mutex),
		scratch:  make(map[int64]*chatScratch),
	}, nil
}

func (e *Engine) chatLock(chatID int64) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	mu, ok := e.locks[chatID]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[chatID] = mu
	}
	return mu
}

func (e *Engine) chatScratch(chatID int64) *chatScratch {
	e.scratchMu.Lock()
	defer e.scratchMu.Unlock()
	s, ok := e.scratch[chatID]
	if !ok {
		s = &chatScratch{lastPage: 1}
		e.scratch[chatID] = s
	}
	return s
}

func (e *Engine) dropScratch(chatID int64) {
	e.scratchMu.Lock()
	defer e.scratchMu.Unlock()
	delete(e.scratch, chatID)
}

// Handle processes one event for a chat. Events for the same chat are
// applied strictly in arrival order; distinct chats proceed in
// parallel.
func (e *Engine) Handle(ctx context.Context, chatID int64, ev Event) error {
	// Payment callbacks are state-independent and must be answered
	// within the transport deadline, so they bypass the state machine.
	switch p := ev.(type) {
	case PreCheckoutQuery:
		return e.handlePreCheckout(ctx, chatID, p)
	case SuccessfulPayment:
		return e.handlePaid(ctx, chatID, p)
	}

	mu := e.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	state, err := e.loadState(ctx, chatID, ev)
	if err != nil {
		return err
	}

	next, err := e.dispatch(ctx, chatID, state, ev)
	if err != nil {
		logger.Error(ctx, "engine", "event.fail",
			slog.Int64("chat_id", chatID),
			slog.String("state", string(state)),
			slog.String("error", err.Error()))
		// Best effort; the persisted state stays untouched so the
		// user can retry the same input.
		_ = e.render.SendText(ctx, chatID, msgTryAgain, nil)
		return err
	}

	if next != state {
		logger.Info(ctx, "engine", "transition",
			slog.Int64("chat_id", chatID),
			slog.String("state", string(state)),
			slog.String("next_state", string(next)))
	}
	if err := e.store.Set(ctx, chatID, next); err != nil {
		return fmt.Errorf("persist state for chat %d: %w", chatID, err)
	}
	if next == session.StateStart {
		e.dropScratch(chatID)
	}
	return nil
}

func (e *Engine) loadState(ctx context.Context, chatID int64, ev Event) (session.State, error) {
	// /start always restarts the flow, whatever was persisted.
	if txt, ok := ev.(TextMessage); ok && txt.Text == "/start" {
		return session.StateStart, nil
	}

	state, err := e.store.Get(ctx, chatID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return session.StateStart, nil
	case err != nil:
		return "", fmt.Errorf("load state for chat %d: %w", chatID, err)
	}
	if !state.Known() {
		return "", fmt.Errorf("chat %d carries unknown state label %q", chatID, state)
	}
	return state, nil
}

func (e *Engine) dispatch(ctx context.Context, chatID int64, state session.State, ev Event) (session.State, error) {
	switch state {
	case session.StateStart:
		return e.handleStart(ctx, chatID)
	case session.StateMenu:
		return e.handleMenu(ctx, chatID, ev)
	case session.StateProduct:
		return e.handleProduct(ctx, chatID, ev)
	case session.StateCart:
		return e.handleCart(ctx, chatID, ev)
	case session.StateAwaitEmail:
		return e.handleAwaitEmail(ctx, chatID, ev)
	case session.StateAwaitAddress:
		return e.handleAwaitAddress(ctx, chatID, ev)
	case session.StateAwaitDelivery:
		return e.handleAwaitDelivery(ctx, chatID, ev)
	default:
		return "", fmt.Errorf("no handler for state %q", state)
	}
}

func (e *Engine) handlePreCheckout(ctx context.Context, chatID int64, q PreCheckoutQuery) error {
	if err := e.payments.AcceptPreCheckout(ctx, q.QueryID); err != nil {
		return fmt.Errorf("accept pre-checkout for chat %d: %w", chatID, err)
	}
	logger.Info(ctx, "engine", "precheckout.ok",
		slog.Int64("chat_id", chatID),
		slog.String("payload", q.Payload))
	return nil
}

func (e *Engine) handlePaid(ctx context.Context, chatID int64, p SuccessfulPayment) error {
	logger.Info(ctx, "engine", "payment.ok",
		slog.Int64("chat_id", chatID),
		slog.Int("amount", p.TotalAmount),
		slog.String("payload", p.Payload))
	// The paid lines must not resurface on the next browse. Best
	// effort: a failed cleanup never swallows the confirmation.
	if err := e.commerce.ClearCart(ctx, chatID); err != nil {
		logger.Warn(ctx, "engine", "cart.clear_fail",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()))
	}
	return e.render.SendText(ctx, chatID,
		"Payment received, thank you! Your pizza is on its way.", nil)
}
