package models

import (
	"time"
)

// TransactionStatus tracks the lifecycle of a payment-gateway invoice.
type TransactionStatus string

const (
	TransactionInitiated TransactionStatus = "initiated"
	TransactionPaid      TransactionStatus = "paid"
	TransactionFailed    TransactionStatus = "failed"
)

// PaymentTransaction is the audit row written for every invoice requested
// from the payment gateway. The gateway callback resolves it to paid or
// failed; rows are never deleted.
type PaymentTransaction struct {
	BaseModel
	TransactionID  string            `gorm:"size:64;uniqueIndex;not null" json:"transactionId"`
	AppointmentID  string            `gorm:"size:36;index" json:"appointmentId"`
	Amount         int64             `gorm:"not null" json:"amount"` // RWF
	Status         TransactionStatus `gorm:"size:20;default:'initiated'" json:"status"`
	PaymentLinkURL string            `gorm:"type:text" json:"paymentLinkUrl"`
	ExpiresAt      time.Time         `json:"expiresAt"`

	// Relation
	Appointment Appointment `gorm:"foreignKey:AppointmentID" json:"-"`
}
