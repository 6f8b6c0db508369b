package models

import (
	"math"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// PaymentStatus tracks the checkout state of an appointment separately from
// its scheduling lifecycle.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// AllowedDurations are the session lengths offered on the booking form.
var AllowedDurations = []int{30, 60, 90}

// ValidDuration reports whether a session length is offered.
func ValidDuration(minutes int) bool {
	for _, d := range AllowedDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

// ConsultationFee computes the authoritative price of a session in RWF:
// round(hourly_rate * duration / 60). Client-supplied totals are display
// hints only and are never trusted.
func ConsultationFee(hourlyRate int64, durationMinutes int) int64 {
	return int64(math.Round(float64(hourlyRate) * float64(durationMinutes) / 60))
}

// Appointment represents a scheduled therapy session
type Appointment struct {
	BaseModel
	PatientID       string            `gorm:"size:36;index" json:"patientId"`
	DoctorID        string            `gorm:"size:36;index" json:"doctorId"`
	StartTime       time.Time         `json:"startTime"`
	DurationMinutes int               `gorm:"not null;default:60" json:"durationMinutes"`
	TotalAmount     int64             `gorm:"not null" json:"totalAmount"` // RWF
	Notes           string            `gorm:"type:text" json:"notes"`
	Status          AppointmentStatus `gorm:"size:20;default:'pending'" json:"status"`
	PaymentStatus   PaymentStatus     `gorm:"size:20;default:'pending'" json:"paymentStatus"`
	PaymentID       string            `gorm:"size:64;index" json:"paymentId,omitempty"`

	// Relations
	Patient User `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  User `gorm:"foreignKey:DoctorID" json:"-"`
}

// EndTime returns when the session finishes.
func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Overlaps reports whether two appointments occupy intersecting time windows.
func (a *Appointment) Overlaps(other *Appointment) bool {
	return a.StartTime.Before(other.EndTime()) && other.StartTime.Before(a.EndTime())
}
