package engine

import (
	"context"

	"github.com/intrening/pizzabot/internal/delivery"
	"github.com/intrening/pizzabot/internal/elasticpath"
)

// Button is one inline keyboard button. Data is delivered back as a
// CallbackAction token when pressed.
type Button struct {
	Text string
	Data string
}

// Renderer sends output to the chat. Implementations own retries and
// delivery; the engine only describes content.
type Renderer interface {
	SendText(ctx context.Context, chatID int64, html string, keyboard [][]Button) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, keyboard [][]Button) error
	SendLocation(ctx context.Context, chatID int64, lat, lon float64) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Commerce is the catalog, cart, and directory backend.
// *elasticpath.Client satisfies it.
type Commerce interface {
	FetchProducts(ctx context.Context) ([]elasticpath.Product, error)
	GetProduct(ctx context.Context, productID string) (elasticpath.Product, error)
	ImageURL(ctx context.Context, fileID string) (string, error)
	AddToCart(ctx context.Context, chatID int64, productID string, quantity int) error
	RemoveFromCart(ctx context.Context, chatID int64, lineID string) error
	ClearCart(ctx context.Context, chatID int64) error
	CartContents(ctx context.Context, chatID int64) (elasticpath.Cart, error)
	CreateCustomer(ctx context.Context, name, email string) (string, error)
	Pizzerias(ctx context.Context) ([]elasticpath.Pizzeria, error)
	SaveCustomerAddress(ctx context.Context, chatID int64, lat, lon float64) (string, error)
}

// Geocoder resolves free-text addresses to coordinates. A miss is
// reported with geocoder.ErrNotFound.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (delivery.Point, error)
}

// Payments issues invoices and confirms pre-checkout queries.
type Payments interface {
	SendInvoice(ctx context.Context, chatID int64, title, description, payload string, amount int) error
	AcceptPreCheckout(ctx context.Context, queryID string) error
}

// FollowUps arms the post-order reminder for a chat.
type FollowUps interface {
	Schedule(chatID int64)
	Cancel(chatID int64)
}
