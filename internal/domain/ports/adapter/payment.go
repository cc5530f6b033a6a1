package adapter

import (
	"context"
	"net/url"
)

// Buyer is the customer block the gateway checkout form requires.
type Buyer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	City      string
	Country   string
}

// PaymentRequest is what the engine asks the gateway to charge.
type PaymentRequest struct {
	OrderID     string
	Description string
	Amount      int64 // minor units
	Currency    string
	Buyer       Buyer
	ReturnURL   string
	CancelURL   string
}

// SignedPayload is the form the browser POSTs to CheckoutURL.
type SignedPayload struct {
	CheckoutURL string            `json:"checkout_url"`
	Fields      map[string]string `json:"fields"`
}

type ReturnOutcome string

const (
	ReturnSuccess   ReturnOutcome = "success"
	ReturnCancelled ReturnOutcome = "cancelled"
	ReturnError     ReturnOutcome = "error"
)

// ReturnResult is the parsed browser return trip. OrderID may be empty on ReturnError.
type ReturnResult struct {
	Outcome ReturnOutcome
	OrderID string
	Reason  string
}

type NotificationStatus int

const (
	NotificationSuccess    NotificationStatus = 2
	NotificationPending    NotificationStatus = 0
	NotificationCancelled  NotificationStatus = -1
	NotificationFailed     NotificationStatus = -2
	NotificationChargeback NotificationStatus = -3
)

// Notification is the gateway's server-to-server payment notification.
type Notification struct {
	MerchantID string
	OrderID    string
	PaymentID  string
	Amount     int64 // minor units, parsed from the decimal string the gateway signed
	Currency   string
	StatusCode NotificationStatus
	Signature  string
}

type RemoteStatus string

const (
	RemoteReceived   RemoteStatus = "RECEIVED"
	RemoteRefunded   RemoteStatus = "REFUNDED"
	RemoteChargeback RemoteStatus = "CHARGEBACKED"
	RemoteNotFound   RemoteStatus = "NOT_FOUND"
	RemoteOther      RemoteStatus = "OTHER"
)

// RemotePayment is the gateway's own record of a payment, fetched server to server.
type RemotePayment struct {
	PaymentID string
	OrderID   string
	Status    RemoteStatus
	Amount    int64 // minor units
	Currency  string
}

// PaymentGateway is the hex port for the redirect-based payment provider.
type PaymentGateway interface {
	Name() string
	// Configured is false when merchant credentials are absent; checkout must not proceed.
	Configured() bool
	// ReturnURLs builds the return and cancel URLs for orderID under baseURL, each carrying
	// order_id and a signed return ticket.
	ReturnURLs(baseURL, orderID string) (returnURL, cancelURL string, err error)
	// BuildPaymentRequest signs the checkout payload for the browser redirect.
	BuildPaymentRequest(ctx context.Context, req PaymentRequest) (*SignedPayload, error)
	// ParseReturn is pure parsing of the return-trip query; an invalid ticket yields ReturnError.
	ParseReturn(query url.Values) ReturnResult
	// ParseNotification decodes a notification form and verifies its signature.
	ParseNotification(form url.Values) (*Notification, error)
	// CanRetrieve is true when server-side status queries are configured.
	CanRetrieve() bool
	// RetrievePayment queries the gateway for the payment recorded against orderID.
	RetrievePayment(ctx context.Context, orderID string) (*RemotePayment, error)
}
