package order

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/noah-isme/kitstore/internal/pricing"
)

// Item is one purchased kit in an order request.
type Item struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Team     string        `json:"team"`
	Size     string        `json:"size" validate:"omitempty,oneof=S M L XL"`
	Quantity int           `json:"quantity" validate:"min=1"`
	Price    pricing.Money `json:"price"`
}

// Request is the order-creation payload sent by the storefront.
type Request struct {
	Items           []Item        `json:"items" validate:"min=1,dive"`
	Total           pricing.Money `json:"total"`
	Shipping        pricing.Money `json:"shipping"`
	Tax             pricing.Money `json:"tax"`
	FinalTotal      pricing.Money `json:"finalTotal"`
	CustomerName    string        `json:"customerName"`
	CustomerEmail   string        `json:"customerEmail"`
	ShippingAddress string        `json:"shippingAddress"`
	PaymentMethod   string        `json:"paymentMethod"`
}

// Response is the order-creation result. A non-empty Error marks a failure
// whatever Success and the HTTP status say.
type Response struct {
	Success     bool          `json:"success"`
	Message     string        `json:"message,omitempty"`
	OrderNumber string        `json:"orderNumber,omitempty"`
	OrderID     int64         `json:"orderId,omitempty"`
	Total       pricing.Money `json:"total,omitempty"`
	ItemsCount  int           `json:"itemsCount,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Failed reports whether the backend signalled an error.
func (r Response) Failed() bool {
	return strings.TrimSpace(r.Error) != ""
}

// UnmarshalJSON accepts the error either as a plain string or as the API's
// {"code","message"} object.
func (r *Response) UnmarshalJSON(data []byte) error {
	type alias Response
	var raw struct {
		alias
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Response(raw.alias)
	r.Error = flattenError(raw.Error)
	return nil
}

func flattenError(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text
	}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Code != "" {
			return body.Code
		}
	}
	return string(trimmed)
}
