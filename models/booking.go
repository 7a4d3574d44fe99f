package models

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

type BookingPaymentStatus string

const (
	BookingUnpaid   BookingPaymentStatus = "unpaid"
	BookingPaid     BookingPaymentStatus = "paid"
	BookingRefunded BookingPaymentStatus = "refunded"
)

// Booking is owned by the booking service. Payments only ever write Status
// and PaymentStatus.
type Booking struct {
	ID            string               `json:"id"`
	UserID        string               `json:"user_id"`
	TrainerID     string               `json:"trainer_id"`
	ClassID       string               `json:"class_id"`
	Date          string               `json:"date"`
	Time          string               `json:"time"`
	Status        BookingStatus        `json:"status"`
	PaymentStatus BookingPaymentStatus `json:"payment_status"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// BookingUpdate carries the booking fields a payment transition may set.
// A nil Status leaves the booking status untouched.
type BookingUpdate struct {
	PaymentStatus BookingPaymentStatus
	Status        *BookingStatus
}
