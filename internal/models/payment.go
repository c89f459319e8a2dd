package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Membership payment statuses. A payment is mutated exactly once:
// pending -> verified or pending -> failed. Records are never deleted.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusVerified = "verified"
	PaymentStatusFailed   = "failed"
)

// MembershipPayment is one ledger entry against a member's annual fee.
// Year is the fee-year the payment counts toward, fixed at submission time.
type MembershipPayment struct {
	ID            int             `json:"id" db:"id"`
	UserID        int             `json:"user_id" db:"user_id"`
	AmountPaid    decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	DateSubmitted time.Time       `json:"date_submitted" db:"date_submitted"`
	DatePaid      *time.Time      `json:"date_paid" db:"date_paid"` // set at verification if the submitter left it empty
	Year          int             `json:"year" db:"year"`
	PaymentMethod string          `json:"payment_method" db:"payment_method"`
	Reference     string          `json:"reference" db:"reference"`
	Status        string          `json:"status" db:"status"`
	VerifiedBy    *int            `json:"verified_by" db:"verified_by"`
	VerifiedAt    *time.Time      `json:"verified_at" db:"verified_at"`
}

// MemberProfile carries the stored membership state. Active status, verified
// totals and the status label are always derived from the ledger, never stored.
type MemberProfile struct {
	UserID               int        `json:"user_id" db:"user_id"`
	ControlNumber        string     `json:"control_number" db:"control_number"`
	ControlNumberCreated *time.Time `json:"control_number_created" db:"control_number_created"`
	LastPaymentDate      *time.Time `json:"last_payment_date" db:"last_payment_date"`
	ExpiryDate           *time.Time `json:"expiry_date" db:"expiry_date"`
}

// IsActiveMember reports whether the membership has not yet expired on the
// given day.
func (p *MemberProfile) IsActiveMember(today time.Time) bool {
	if p.ExpiryDate == nil {
		return false
	}
	return !p.ExpiryDate.Before(truncateToDay(today))
}

// MembershipStatus is the derived view of a member's financial standing.
type MembershipStatus struct {
	UserID                int             `json:"user_id"`
	ControlNumber         string          `json:"control_number"`
	LastPaymentDate       *time.Time      `json:"last_payment_date"`
	ExpiryDate            *time.Time      `json:"expiry_date"`
	VerifiedTotalThisYear decimal.Decimal `json:"verified_total_this_year"`
	CurrentBalance        decimal.Decimal `json:"current_balance"` // negative when overpaid
	HasPendingPayments    bool            `json:"has_pending_payments"`
	IsActive              bool            `json:"is_active"`
	Label                 string          `json:"label"`
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
