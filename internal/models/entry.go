package models

import "time"

// PaymentStatus of a parking entry. Transitions UNPAID -> PAID once.
type PaymentStatus string

// ExitStatus of a parking entry. Transitions INSIDE -> EXITED once.
type ExitStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"

	ExitInside ExitStatus = "INSIDE"
	ExitExited ExitStatus = "EXITED"
)

// Entry is one vehicle visit. ChargeAmount and PaymentTime are set together
// on the UNPAID->PAID transition; ExitTime on INSIDE->EXITED.
type Entry struct {
	ID            int64         `json:"entry_id"`
	PlateNumber   string        `json:"plate_number"`
	EntryTime     time.Time     `json:"entry_timestamp"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	ExitStatus    ExitStatus    `json:"exit_status"`
	ChargeAmount  *int64        `json:"charge_amount,omitempty"`
	PaymentTime   *time.Time    `json:"payment_timestamp,omitempty"`
	ExitTime      *time.Time    `json:"exit_timestamp,omitempty"`
}

// Active reports whether the visit is still open: unpaid, or paid but the
// vehicle has not left yet. At most one active entry per plate is allowed.
func (e Entry) Active() bool {
	return e.PaymentStatus == PaymentUnpaid ||
		(e.PaymentStatus == PaymentPaid && e.ExitStatus == ExitInside)
}
