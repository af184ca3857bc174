package model

import "time"

// MembershipStatus is the lifecycle state of a membership card.
type MembershipStatus string

const (
	MembershipPendingPayment MembershipStatus = "pending_payment"
	MembershipActive         MembershipStatus = "active"
	MembershipExpired        MembershipStatus = "expired"
	MembershipCancelled      MembershipStatus = "cancelled"
	MembershipUpgraded       MembershipStatus = "upgraded"
)

// Valid reports whether s names a known membership status.
func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipPendingPayment, MembershipActive, MembershipExpired, MembershipCancelled, MembershipUpgraded:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s MembershipStatus) Terminal() bool {
	return s == MembershipCancelled || s == MembershipUpgraded || s == MembershipExpired
}

// membershipTiers maps a membership type to its display name.
var membershipTiers = map[string]string{
	"basic":    "Basic Membership",
	"standard": "Standard Membership",
	"premium":  "Premium Membership",
	"vip":      "VIP Membership",
}

// MembershipTypes lists the accepted membership types.
var MembershipTypes = []string{"basic", "standard", "premium", "vip"}

// ValidMembershipType reports whether t is a known tier.
func ValidMembershipType(t string) bool {
	_, ok := membershipTiers[t]
	return ok
}

// MembershipTierName returns the human readable name of a tier, falling
// back to the raw type for unknown values.
func MembershipTierName(t string) string {
	if name, ok := membershipTiers[t]; ok {
		return name
	}
	return t
}

// Membership is a time-boxed, account-level subscription. A user holds
// at most one active membership; the store enforces this with a unique
// index over the active rows.
type Membership struct {
	ID               uint64           `json:"id"`
	UserID           uint64           `json:"user_id"`
	Type             string           `json:"type"`
	Price            int64            `json:"price"`
	StartDate        time.Time        `json:"start_date"`
	EndDate          time.Time        `json:"end_date"`
	Status           MembershipStatus `json:"status"`
	PaymentStatus    bool             `json:"payment_status"`
	PendingPaymentID *uint64          `json:"pending_payment_id,omitempty"`
	UpgradedFromID   *uint64          `json:"upgraded_from_id,omitempty"`
	StatusNote       string           `json:"status_note,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Summary projects m into the summary shown on the user profile.
func (m Membership) Summary() MembershipSummary {
	return MembershipSummary{
		MembershipID: m.ID,
		Type:         m.Type,
		StartDate:    m.StartDate,
		EndDate:      m.EndDate,
	}
}
