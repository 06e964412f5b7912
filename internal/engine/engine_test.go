package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/intrening/pizzabot/internal/delivery"
	"github.com/intrening/pizzabot/internal/elasticpath"
	"github.com/intrening/pizzabot/internal/geocoder"
	"github.com/intrening/pizzabot/internal/session"
)

type fakeCommerce struct {
	mu        sync.Mutex
	products  []elasticpath.Product
	carts     map[int64][]elasticpath.CartLine
	customers []string
	addresses []delivery.Point
	pizzerias []elasticpath.Pizzeria

	failProducts bool
	customerErr  error
}

func (f *fakeCommerce) FetchProducts(ctx context.Context) ([]elasticpath.Product, error) {
	if f.failProducts {
		return nil, errors.New("catalog unavailable")
	}
	return f.products, nil
}

func (f *fakeCommerce) GetProduct(ctx context.Context, id string) (elasticpath.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return elasticpath.Product{}, &elasticpath.APIError{Status: 404, Method: "GET", Path: "/v2/products/" + id}
}

func (f *fakeCommerce) ImageURL(ctx context.Context, fileID string) (string, error) {
	return "https://img.example/" + fileID, nil
}

func (f *fakeCommerce) AddToCart(ctx context.Context, chatID int64, productID string, qty int) error {
	product, err := f.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.carts == nil {
		f.carts = make(map[int64][]elasticpath.CartLine)
	}
	f.carts[chatID] = append(f.carts[chatID], elasticpath.CartLine{
		ID:          fmt.Sprintf("line-%s-%d", productID, len(f.carts[chatID])),
		ProductID:   productID,
		Name:        product.Name,
		Description: product.Description,
		Quantity:    qty,
		UnitAmount:  product.Amount,
		ValueAmount: qty * product.Amount,
	})
	return nil
}

func (f *fakeCommerce) RemoveFromCart(ctx context.Context, chatID int64, lineID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := f.carts[chatID]
	for i, line := range lines {
		if line.ID == lineID {
			f.carts[chatID] = append(lines[:i:i], lines[i+1:]...)
			return nil
		}
	}
	return &elasticpath.APIError{Status: 404, Method: "DELETE"}
}

func (f *fakeCommerce) ClearCart(ctx context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.carts, chatID)
	return nil
}

func (f *fakeCommerce) CartContents(ctx context.Context, chatID int64) (elasticpath.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart := elasticpath.Cart{Lines: append([]elasticpath.CartLine(nil), f.carts[chatID]...)}
	for _, line := range cart.Lines {
		cart.TotalAmount += line.ValueAmount
	}
	return cart, nil
}

func (f *fakeCommerce) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	if f.customerErr != nil {
		return "", f.customerErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers = append(f.customers, email)
	return fmt.Sprintf("cust-%d", len(f.customers)), nil
}

func (f *fakeCommerce) Pizzerias(ctx context.Context) ([]elasticpath.Pizzeria, error) {
	return f.pizzerias, nil
}

func (f *fakeCommerce) SaveCustomerAddress(ctx context.Context, chatID int64, lat, lon float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addresses = append(f.addresses, delivery.Point{Lat: lat, Lon: lon})
	return "addr-1", nil
}

type fakeGeo struct {
	known map[string]delivery.Point
}

func (f *fakeGeo) Resolve(ctx context.Context, address string) (delivery.Point, error) {
	if pt, ok := f.known[address]; ok {
		return pt, nil
	}
	return delivery.Point{}, geocoder.ErrNotFound
}

type sentText struct {
	chatID   int64
	text     string
	keyboard [][]Button
}

type fakeRenderer struct {
	mu        sync.Mutex
	texts     []sentText
	photos    []sentText
	locations []int64
	answers   []string
	deleted   []int
	delay     time.Duration

	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func (f *fakeRenderer) track() func() {
	n := f.inFlight.Add(1)
	for {
		max := f.maxFlight.Load()
		if n <= max || f.maxFlight.CompareAndSwap(max, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeRenderer) SendText(ctx context.Context, chatID int64, text string, kb [][]Button) error {
	defer f.track()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sentText{chatID, text, kb})
	return nil
}

func (f *fakeRenderer) SendPhoto(ctx context.Context, chatID int64, url, caption string, kb [][]Button) error {
	defer f.track()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, sentText{chatID, caption, kb})
	return nil
}

func (f *fakeRenderer) SendLocation(ctx context.Context, chatID int64, lat, lon float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations = append(f.locations, chatID)
	return nil
}

func (f *fakeRenderer) AnswerCallback(ctx context.Context, callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeRenderer) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeRenderer) lastText(t *testing.T) sentText {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		t.Fatal("no text was sent")
	}
	return f.texts[len(f.texts)-1]
}

type invoice struct {
	chatID  int64
	amount  int
	payload string
}

type fakePayments struct {
	mu       sync.Mutex
	invoices []invoice
	accepted []string
}

func (f *fakePayments) SendInvoice(ctx context.Context, chatID int64, title, desc, payload string, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices = append(f.invoices, invoice{chatID, amount, payload})
	return nil
}

func (f *fakePayments) AcceptPreCheckout(ctx context.Context, queryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted = append(f.accepted, queryID)
	return nil
}

type fakeFollowUps struct {
	mu        sync.Mutex
	scheduled []int64
}

func (f *fakeFollowUps) Schedule(chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, chatID)
}

func (f *fakeFollowUps) Cancel(chatID int64) {}

type fixture struct {
	engine   *Engine
	store    session.Store
	commerce *fakeCommerce
	render   *fakeRenderer
	payments *fakePayments
	followUp *fakeFollowUps
	geo      *fakeGeo
}

// Outlet near Red Square; test coordinates are offsets from it.
var outlet = elasticpath.Pizzeria{
	ID: "e1", Alias: "Central", Address: "Moscow, Arbat 1",
	Lat: 55.75, Lon: 37.62, CourierChatID: 900,
}

func newFixture(t *testing.T, productCount int) *fixture {
	t.Helper()
	products := make([]elasticpath.Product, 0, productCount)
	for i := 1; i <= productCount; i++ {
		products = append(products, elasticpath.Product{
			ID:          fmt.Sprintf("p%d", i),
			Name:        fmt.Sprintf("Pizza %d", i),
			Description: "Cheesy",
			Amount:      50000 + i,
			Currency:    "RUB",
			ImageFileID: fmt.Sprintf("img%d", i),
		})
	}
	commerce := &fakeCommerce{
		products:  products,
		pizzerias: []elasticpath.Pizzeria{outlet},
	}
	geo := &fakeGeo{known: map[string]delivery.Point{
		"Arbat 2": {Lat: 55.752, Lon: 37.62},
	}}
	render := &fakeRenderer{}
	payments := &fakePayments{}
	followUp := &fakeFollowUps{}
	store := session.NewMemoryStore()

	eng, err := New(Options{
		Store:    store,
		Commerce: commerce,
		Geocoder: geo,
		Renderer: render,
		Payments: payments,
		FollowUp: followUp,
		PageSize: 8,
		Fees:     delivery.Fees{Light: 10000, Standard: 30000},
		Currency: "RUB",
	})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		engine: eng, store: store, commerce: commerce,
		render: render, payments: payments, followUp: followUp, geo: geo,
	}
}

func (fx *fixture) mustState(t *testing.T, chatID int64, want session.State) {
	t.Helper()
	got, err := fx.store.Get(context.Background(), chatID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if got != want {
		t.Fatalf("state = %s, expected %s", got, want)
	}
}

func (fx *fixture) handle(t *testing.T, chatID int64, ev Event) {
	t.Helper()
	if err := fx.engine.Handle(context.Background(), chatID, ev); err != nil {
		t.Fatalf("handle %T: %v", ev, err)
	}
}

func (fx *fixture) setState(t *testing.T, chatID int64, st session.State) {
	t.Helper()
	if err := fx.store.Set(context.Background(), chatID, st); err != nil {
		t.Fatal(err)
	}
}

func TestStartRendersFirstMenuPage(t *testing.T) {
	fx := newFixture(t, 3)
	fx.handle(t, 1, TextMessage{Text: "/start"})

	fx.mustState(t, 1, session.StateMenu)
	last := fx.render.lastText(t)
	// 3 product rows plus the cart row; no nav controls on a single page.
	if len(last.keyboard) != 4 {
		t.Fatalf("keyboard rows = %d, expected 4", len(last.keyboard))
	}
	if last.keyboard[0][0].Data != "p1" {
		t.Errorf("first button data = %q", last.keyboard[0][0].Data)
	}
	if last.keyboard[3][0].Data != "cart" {
		t.Errorf("last row data = %q", last.keyboard[3][0].Data)
	}
}

func TestMenuPagination(t *testing.T) {
	fx := newFixture(t, 10)
	fx.handle(t, 1, TextMessage{Text: "/start"})

	// Page 1: items [0,8), only a "next" control.
	page1 := fx.render.lastText(t)
	if len(page1.keyboard) != 10 { // 8 products + nav + cart
		t.Fatalf("page1 rows = %d, expected 10", len(page1.keyboard))
	}
	nav := page1.keyboard[8]
	if len(nav) != 1 || nav[0].Data != "page 2" {
		t.Fatalf("page1 nav = %+v, expected single next to page 2", nav)
	}

	// Page 2: items [8,10), only a "previous" control.
	fx.handle(t, 1, CallbackAction{Token: "page 2"})
	fx.mustState(t, 1, session.StateMenu)
	page2 := fx.render.lastText(t)
	if len(page2.keyboard) != 4 { // 2 products + nav + cart
		t.Fatalf("page2 rows = %d, expected 4", len(page2.keyboard))
	}
	if page2.keyboard[0][0].Data != "p9" {
		t.Errorf("page2 first item = %q, expected p9", page2.keyboard[0][0].Data)
	}
	nav = page2.keyboard[2]
	if len(nav) != 1 || nav[0].Data != "page 1" {
		t.Fatalf("page2 nav = %+v, expected single back to page 1", nav)
	}
}

func TestMenuOutOfRangePageRendersEmptyList(t *testing.T) {
	fx := newFixture(t, 3)
	fx.handle(t, 1, TextMessage{Text: "/start"})
	fx.handle(t, 1, CallbackAction{Token: "page 99"})

	fx.mustState(t, 1, session.StateMenu)
	last := fx.render.lastText(t)
	// No items, a back control, and the cart row.
	if len(last.keyboard) != 2 {
		t.Fatalf("rows = %d, expected 2 (nav + cart)", len(last.keyboard))
	}
	if last.keyboard[0][0].Data != "page 98" {
		t.Errorf("nav data = %q", last.keyboard[0][0].Data)
	}
}

func TestProductDetailAndAddToCart(t *testing.T) {
	fx := newFixture(t, 3)
	fx.handle(t, 1, TextMessage{Text: "/start"})
	fx.handle(t, 1, CallbackAction{Token: "p2"})
	fx.mustState(t, 1, session.StateProduct)

	if len(fx.render.photos) != 1 {
		t.Fatalf("photos sent = %d, expected 1", len(fx.render.photos))
	}
	photo := fx.render.photos[0]
	if !strings.Contains(photo.text, "Pizza 2") {
		t.Errorf("caption = %q", photo.text)
	}
	if photo.keyboard[0][1].Data != "p2 5" {
		t.Errorf("qty button data = %q", photo.keyboard[0][1].Data)
	}

	fx.handle(t, 1, CallbackAction{Token: "p2 5", CallbackID: "cb1"})
	fx.mustState(t, 1, session.StateProduct)

	cart, _ := fx.commerce.CartContents(context.Background(), 1)
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 5 || cart.Lines[0].ProductID != "p2" {
		t.Fatalf("cart = %+v", cart.Lines)
	}
	if len(fx.render.answers) != 1 {
		t.Fatalf("callback answers = %d, expected 1", len(fx.render.answers))
	}
}

func TestProductViewEscapesCatalogText(t *testing.T) {
	fx := newFixture(t, 1)
	fx.commerce.products = append(fx.commerce.products,
		elasticpath.Product{
			ID: "sp", Name: "Chili & <Hot>", Description: "A < B",
			Amount: 60000, Currency: "RUB", ImageFileID: "imgsp",
		},
		elasticpath.Product{
			ID: "pl", Name: "Plain & Simple", Description: "No photo yet",
			Amount: 40000, Currency: "RUB",
		},
	)
	fx.handle(t, 1, TextMessage{Text: "/start"})

	// Photo captions go out in HTML parse mode like everything else.
	fx.handle(t, 1, CallbackAction{Token: "sp"})
	caption := fx.render.photos[len(fx.render.photos)-1].text
	if !strings.Contains(caption, "Chili &amp; &lt;Hot&gt;") || !strings.Contains(caption, "A &lt; B") {
		t.Fatalf("caption = %q, expected escaped markup", caption)
	}

	// The text fallback carries the same caption, escaped exactly once.
	fx.handle(t, 1, CallbackAction{Token: "menu"})
	fx.handle(t, 1, CallbackAction{Token: "pl"})
	text := fx.render.lastText(t).text
	if !strings.Contains(text, "Plain &amp; Simple") {
		t.Fatalf("text view = %q, expected escaped ampersand", text)
	}
	if strings.Contains(text, "&amp;amp;") {
		t.Fatalf("text view = %q, escaped twice", text)
	}
}

func TestNavigationDeletesSupersededView(t *testing.T) {
	fx := newFixture(t, 10)
	fx.handle(t, 1, TextMessage{Text: "/start"})

	// Paging to another menu view removes the old one.
	fx.handle(t, 1, CallbackAction{Token: "page 2", MessageID: 41})
	fx.mustState(t, 1, session.StateMenu)

	// Opening a product removes the menu message.
	fx.handle(t, 1, CallbackAction{Token: "p9", MessageID: 42})
	fx.mustState(t, 1, session.StateProduct)

	// Add-to-cart answers the callback but keeps the product view.
	fx.handle(t, 1, CallbackAction{Token: "p9 1", CallbackID: "cb", MessageID: 43})
	fx.mustState(t, 1, session.StateProduct)

	fx.render.mu.Lock()
	deleted := append([]int(nil), fx.render.deleted...)
	fx.render.mu.Unlock()
	want := []int{41, 42}
	if len(deleted) != len(want) || deleted[0] != want[0] || deleted[1] != want[1] {
		t.Fatalf("deleted = %v, expected %v", deleted, want)
	}
}

func TestCartRemoveAndCheckout(t *testing.T) {
	fx := newFixture(t, 3)
	fx.handle(t, 1, TextMessage{Text: "/start"})
	fx.handle(t, 1, CallbackAction{Token: "p1"})
	fx.handle(t, 1, CallbackAction{Token: "p1 1", CallbackID: "cb"})
	fx.handle(t, 1, CallbackAction{Token: "menu"})
	fx.handle(t, 1, CallbackAction{Token: "cart"})
	fx.mustState(t, 1, session.StateCart)

	cartView := fx.render.lastText(t)
	if !strings.Contains(cartView.text, "Pizza 1") || !strings.Contains(cartView.text, "Total:") {
		t.Fatalf("cart view = %q", cartView.text)
	}

	lineID := cartView.keyboard[0][0].Data
	fx.handle(t, 1, CallbackAction{Token: lineID})
	fx.mustState(t, 1, session.StateCart)
	if !strings.Contains(fx.render.lastText(t).text, "empty") {
		t.Fatalf("expected empty cart view, got %q", fx.render.lastText(t).text)
	}

	fx.handle(t, 1, CallbackAction{Token: "checkout"})
	fx.mustState(t, 1, session.StateAwaitEmail)
}

func TestEmailValidationAndIdempotentRegistration(t *testing.T) {
	fx := newFixture(t, 1)
	fx.setState(t, 1, session.StateAwaitEmail)

	fx.handle(t, 1, TextMessage{Text: "not-an-email"})
	fx.mustState(t, 1, session.StateAwaitEmail)
	if !strings.Contains(fx.render.lastText(t).text, "does not look like an email") {
		t.Fatalf("reprompt = %q", fx.render.lastText(t).text)
	}

	fx.handle(t, 1, TextMessage{Text: "a@b.com", SenderName: "Alice"})
	fx.mustState(t, 1, session.StateAwaitAddress)
	if len(fx.commerce.customers) != 1 || fx.commerce.customers[0] != "a@b.com" {
		t.Fatalf("customers = %v", fx.commerce.customers)
	}

	// Submitting again from the same state registers again and advances
	// the same way.
	fx.setState(t, 1, session.StateAwaitEmail)
	fx.handle(t, 1, TextMessage{Text: "a@b.com", SenderName: "Alice"})
	fx.mustState(t, 1, session.StateAwaitAddress)
	if len(fx.commerce.customers) != 2 {
		t.Fatalf("customers = %v", fx.commerce.customers)
	}
}

func TestAddressTooFarReprompts(t *testing.T) {
	fx := newFixture(t, 1)
	fx.setState(t, 1, session.StateAwaitAddress)

	// Roughly 33 km north of the outlet.
	fx.handle(t, 1, LocationShare{Lat: 56.05, Lon: 37.62})
	fx.mustState(t, 1, session.StateAwaitAddress)
	if !strings.Contains(fx.render.lastText(t).text, "too far") {
		t.Fatalf("message = %q", fx.render.lastText(t).text)
	}
}

func TestAddressNearbyOffersFreePickup(t *testing.T) {
	fx := newFixture(t, 1)
	fx.setState(t, 1, session.StateAwaitAddress)

	// About 220 m from the outlet.
	fx.handle(t, 1, LocationShare{Lat: 55.752, Lon: 37.62})
	fx.mustState(t, 1, session.StateAwaitDelivery)
	last := fx.render.lastText(t)
	if !strings.Contains(last.text, "free") {
		t.Fatalf("message = %q", last.text)
	}
	if len(last.keyboard) != 2 {
		t.Fatalf("keyboard = %+v", last.keyboard)
	}
	if len(fx.commerce.addresses) != 1 {
		t.Fatalf("addresses recorded = %d", len(fx.commerce.addresses))
	}
}

func TestFreeTextAddressViaGeocoder(t *testing.T) {
	fx := newFixture(t, 1)
	fx.setState(t, 1, session.StateAwaitAddress)

	fx.handle(t, 1, TextMessage{Text: "nowhere at all"})
	fx.mustState(t, 1, session.StateAwaitAddress)
	if !strings.Contains(fx.render.lastText(t).text, "Could not find") {
		t.Fatalf("message = %q", fx.render.lastText(t).text)
	}

	fx.handle(t, 1, TextMessage{Text: "Arbat 2"})
	fx.mustState(t, 1, session.StateAwaitDelivery)
}

func TestPickupIssuesInvoiceAndArmsFollowUp(t *testing.T) {
	fx := newFixture(t, 1)
	fx.handle(t, 1, TextMessage{Text: "/start"})
	fx.handle(t, 1, CallbackAction{Token: "p1"})
	fx.handle(t, 1, CallbackAction{Token: "p1 1", CallbackID: "cb"})
	fx.setState(t, 1, session.StateAwaitAddress)
	fx.handle(t, 1, LocationShare{Lat: 55.752, Lon: 37.62})

	fx.handle(t, 1, CallbackAction{Token: "pickup"})
	fx.mustState(t, 1, session.StateStart)

	if len(fx.payments.invoices) != 1 {
		t.Fatalf("invoices = %d, expected 1", len(fx.payments.invoices))
	}
	inv := fx.payments.invoices[0]
	if inv.amount != 50001 { // cart total, no delivery fee on pickup
		t.Errorf("invoice amount = %d", inv.amount)
	}
	if inv.payload == "" {
		t.Error("invoice payload must not be empty")
	}
	if len(fx.followUp.scheduled) != 1 || fx.followUp.scheduled[0] != 1 {
		t.Fatalf("follow-ups = %v", fx.followUp.scheduled)
	}
}

func TestCompletedFlowDropsScratchEntry(t *testing.T) {
	fx := newFixture(t, 1)
	fx.handle(t, 1, TextMessage{Text: "/start"})
	fx.handle(t, 1, CallbackAction{Token: "p1"})
	fx.handle(t, 1, CallbackAction{Token: "p1 1", CallbackID: "cb"})
	fx.setState(t, 1, session.StateAwaitAddress)
	fx.handle(t, 1, LocationShare{Lat: 55.752, Lon: 37.62})
	fx.handle(t, 1, CallbackAction{Token: "pickup"})
	fx.mustState(t, 1, session.StateStart)

	fx.engine.scratchMu.Lock()
	_, live := fx.engine.scratch[1]
	fx.engine.scratchMu.Unlock()
	if live {
		t.Fatal("scratch entry survived flow completion")
	}
}

func TestDeliveryNotifiesCourierAndAddsFee(t *testing.T) {
	fx := newFixture(t, 1)
	fx.handle(t, 1, TextMessage{Text: "/start"})
	fx.handle(t, 1, CallbackAction{Token: "p1"})
	fx.handle(t, 1, CallbackAction{Token: "p1 2", CallbackID: "cb"})
	fx.setState(t, 1, session.StateAwaitAddress)

	// About 2.5 km away: light delivery tier.
	fx.handle(t, 1, LocationShare{Lat: 55.7725, Lon: 37.62})
	fx.mustState(t, 1, session.StateAwaitDelivery)

	fx.handle(t, 1, CallbackAction{Token: "delivery"})
	fx.mustState(t, 1, session.StateAwaitAddress)

	// Courier chat received the order summary and the location.
	var courierTexts int
	for _, msg := range fx.render.texts {
		if msg.chatID == outlet.CourierChatID {
			courierTexts++
		}
	}
	if courierTexts != 1 {
		t.Fatalf("courier texts = %d, expected 1", courierTexts)
	}
	if len(fx.render.locations) != 1 || fx.render.locations[0] != outlet.CourierChatID {
		t.Fatalf("locations = %v", fx.render.locations)
	}

	inv := fx.payments.invoices[0]
	if want := 2*50001 + 10000; inv.amount != want {
		t.Errorf("invoice amount = %d, expected %d", inv.amount, want)
	}
	if len(fx.followUp.scheduled) != 1 {
		t.Fatalf("follow-ups = %v", fx.followUp.scheduled)
	}
}

func TestUnsupportedEventReRendersCurrentView(t *testing.T) {
	fx := newFixture(t, 2)
	fx.handle(t, 1, TextMessage{Text: "/start"})
	sentBefore := len(fx.render.texts)

	// Plain text in the menu state is not a transition.
	fx.handle(t, 1, TextMessage{Text: "hello there"})
	fx.mustState(t, 1, session.StateMenu)
	if len(fx.render.texts) != sentBefore+1 {
		t.Fatalf("expected exactly one re-render, sent %d", len(fx.render.texts)-sentBefore)
	}
}

func TestStartCommandResetsFromAnyState(t *testing.T) {
	fx := newFixture(t, 2)
	fx.setState(t, 1, session.StateAwaitEmail)

	fx.handle(t, 1, TextMessage{Text: "/start"})
	fx.mustState(t, 1, session.StateMenu)
}

func TestUnknownStateLabelIsolatesTheEvent(t *testing.T) {
	fx := newFixture(t, 1)
	fx.setState(t, 1, session.State("HANDLE_MENU"))

	err := fx.engine.Handle(context.Background(), 1, CallbackAction{Token: "cart"})
	if err == nil {
		t.Fatal("expected an error for an unknown state label")
	}

	// Other chats keep working.
	fx.handle(t, 2, TextMessage{Text: "/start"})
	fx.mustState(t, 2, session.StateMenu)
}

func TestCollaboratorFailureLeavesStateUntouched(t *testing.T) {
	fx := newFixture(t, 1)
	fx.setState(t, 1, session.StateCart)
	fx.commerce.failProducts = true

	err := fx.engine.Handle(context.Background(), 1, CallbackAction{Token: "menu"})
	if err == nil {
		t.Fatal("expected collaborator failure to surface")
	}
	fx.mustState(t, 1, session.StateCart)

	// The user got a generic retry message rather than silence.
	if !strings.Contains(fx.render.lastText(t).text, "try again") {
		t.Fatalf("message = %q", fx.render.lastText(t).text)
	}
}

func TestPreCheckoutAlwaysAccepted(t *testing.T) {
	fx := newFixture(t, 1)
	fx.handle(t, 1, PreCheckoutQuery{QueryID: "q1", Payload: "order-1"})
	if len(fx.payments.accepted) != 1 || fx.payments.accepted[0] != "q1" {
		t.Fatalf("accepted = %v", fx.payments.accepted)
	}
}

func TestSuccessfulPaymentThanksTheUser(t *testing.T) {
	fx := newFixture(t, 1)
	fx.handle(t, 1, SuccessfulPayment{Payload: "order-1", TotalAmount: 60001, Currency: "RUB"})
	if !strings.Contains(fx.render.lastText(t).text, "thank") {
		t.Fatalf("message = %q", fx.render.lastText(t).text)
	}
}

func TestSuccessfulPaymentClearsCart(t *testing.T) {
	fx := newFixture(t, 1)
	fx.handle(t, 1, TextMessage{Text: "/start"})
	fx.handle(t, 1, CallbackAction{Token: "p1"})
	fx.handle(t, 1, CallbackAction{Token: "p1 2", CallbackID: "cb"})

	fx.handle(t, 1, SuccessfulPayment{Payload: "order-1", TotalAmount: 100002, Currency: "RUB"})

	cart, _ := fx.commerce.CartContents(context.Background(), 1)
	if len(cart.Lines) != 0 {
		t.Fatalf("cart after payment = %+v, expected empty", cart.Lines)
	}
}

func TestSameChatEventsAreSerialized(t *testing.T) {
	fx := newFixture(t, 3)
	fx.render.delay = 5 * time.Millisecond
	fx.handle(t, 1, TextMessage{Text: "/start"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = fx.engine.Handle(context.Background(), 1, CallbackAction{Token: "page 2"})
		}()
	}
	wg.Wait()

	if max := fx.render.maxFlight.Load(); max > 1 {
		t.Fatalf("observed %d concurrent sends for one chat, expected 1", max)
	}
}

func TestDistinctChatsProceedConcurrently(t *testing.T) {
	fx := newFixture(t, 3)
	fx.render.delay = 30 * time.Millisecond

	var wg sync.WaitGroup
	start := time.Now()
	for chat := int64(1); chat <= 4; chat++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = fx.engine.Handle(context.Background(), id, TextMessage{Text: "/start"})
		}(chat)
	}
	wg.Wait()

	// Serialized execution would take at least 4x the render delay.
	if took := time.Since(start); took > 100*time.Millisecond {
		t.Fatalf("4 independent chats took %v, expected parallel progress", took)
	}
}
