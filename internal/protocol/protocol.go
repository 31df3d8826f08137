// Package protocol defines the textual, newline-terminated wire protocol
// spoken with the payment terminal. Messages are tagged with a fixed prefix
// from a closed set; anything else is rejected before it reaches business
// logic.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tags a request message.
type Kind string

// The closed set of request kinds.
const (
	KindProcessPayment Kind = "PROCESS_PAYMENT"
)

const (
	processPaymentPrefix = "PROCESS_PAYMENT:"
	newBalancePrefix     = "NEW_BALANCE:"
	errorPrefix          = "ERROR:"
)

// Parse errors, surfaced to the terminal as ERROR:<reason>.
var (
	ErrUnknownKind    = errors.New("invalid request format")
	ErrMissingComma   = errors.New("missing comma separator in request")
	ErrMissingFields  = errors.New("missing plate number or balance data")
	ErrTrailingFields = errors.New("invalid request format - expected PLATE,BALANCE")
)

// Request is one parsed terminal message. Balance stays raw text here;
// numeric validation is a payment-policy concern, not a framing one.
type Request struct {
	Kind    Kind
	Plate   string
	Balance string
}

// IsRequest reports whether line carries any known request tag. Lines that
// are not requests (sensor chatter, firmware banners) are skipped silently.
func IsRequest(line string) bool {
	return strings.HasPrefix(line, processPaymentPrefix)
}

// ParseRequest decodes one request line.
func ParseRequest(line string) (Request, error) {
	if !strings.HasPrefix(line, processPaymentPrefix) {
		return Request{}, ErrUnknownKind
	}
	body := strings.TrimSpace(strings.TrimPrefix(line, processPaymentPrefix))
	if !strings.Contains(body, ",") {
		return Request{}, ErrMissingComma
	}
	parts := strings.SplitN(body, ",", 2)
	plate := strings.ToUpper(strings.TrimSpace(parts[0]))
	balance := strings.TrimSpace(parts[1])
	if plate == "" || balance == "" {
		return Request{}, ErrMissingFields
	}
	if strings.Contains(balance, ",") {
		return Request{}, ErrTrailingFields
	}
	return Request{Kind: KindProcessPayment, Plate: plate, Balance: balance}, nil
}

// NewBalance formats a success response.
func NewBalance(balance int64) string {
	return fmt.Sprintf("%s%d", newBalancePrefix, balance)
}

// Error formats a failure response with a human-readable reason.
func Error(reason string) string {
	return errorPrefix + reason
}
