package engine

// Event is one inbound occurrence on a chat. The concrete types below
// form a closed union; the transport adapter constructs them and the
// engine consumes them.
type Event interface {
	isEvent()
}

// TextMessage is a plain text message from the user.
type TextMessage struct {
	Text string
	// SenderName is the sender's display name, used for CRM registration.
	SenderName string
}

// CallbackAction is an inline-button press. Token is the raw button
// payload; CallbackID is used to answer the press. MessageID, when
// known, identifies the message carrying the pressed keyboard so a
// superseded view can be removed.
type CallbackAction struct {
	Token      string
	CallbackID string
	MessageID  int
}

// LocationShare is a shared geo position.
type LocationShare struct {
	Lat float64
	Lon float64
}

// PreCheckoutQuery asks for payment confirmation and must be answered
// promptly.
type PreCheckoutQuery struct {
	QueryID string
	Payload string
}

// SuccessfulPayment reports a completed payment.
type SuccessfulPayment struct {
	Payload     string
	TotalAmount int
	Currency    string
}

func (TextMessage) isEvent()       {}
func (CallbackAction) isEvent()    {}
func (LocationShare) isEvent()     {}
func (PreCheckoutQuery) isEvent()  {}
func (SuccessfulPayment) isEvent() {}
