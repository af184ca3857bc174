package model

import "time"

// PaymentStatus is the state of a payment. Completed and cancelled are
// terminal.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentFailed    PaymentStatus = "failed"
)

// Valid reports whether s names a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentCancelled, PaymentFailed:
		return true
	}
	return false
}

// Payment methods accepted at the front desk or online.
const (
	MethodCash         = "cash"
	MethodBankTransfer = "bank_transfer"
	MethodCreditCard   = "credit_card"
	MethodEWallet      = "e_wallet"
)

// ValidPaymentMethod reports whether m is an accepted payment channel.
func ValidPaymentMethod(m string) bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCreditCard, MethodEWallet:
		return true
	}
	return false
}

// ItemKind discriminates the target of a payment item.
type ItemKind string

const (
	ItemEnrollment ItemKind = "enrollment"
	ItemMembership ItemKind = "membership"
)

// Valid reports whether k is a known item kind.
func (k ItemKind) Valid() bool { return k == ItemEnrollment || k == ItemMembership }

// PaymentItem references one payable target. The kind is stored with the
// reference so resolution is a single lookup in the right table.
type PaymentItem struct {
	Kind ItemKind `json:"kind"`
	ID   uint64   `json:"id"`
}

// Payment is a single payment covering one or more enrollments and/or
// memberships.
type Payment struct {
	ID              uint64        `json:"id"`
	Reference       string        `json:"reference"`
	UserID          uint64        `json:"user_id"`
	Amount          int64         `json:"amount"`
	Method          string        `json:"method"`
	Status          PaymentStatus `json:"status"`
	PaymentType     string        `json:"payment_type"`
	Items           []PaymentItem `json:"items"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// HasItem reports whether the payment already references it.
func (p Payment) HasItem(it PaymentItem) bool {
	for _, cur := range p.Items {
		if cur == it {
			return true
		}
	}
	return false
}

// MergeItems returns the union of existing and extra, preserving the
// order of first appearance and dropping duplicates.
func MergeItems(existing, extra []PaymentItem) []PaymentItem {
	seen := make(map[PaymentItem]struct{}, len(existing)+len(extra))
	out := make([]PaymentItem, 0, len(existing)+len(extra))
	for _, list := range [][]PaymentItem{existing, extra} {
		for _, it := range list {
			if _, ok := seen[it]; ok {
				continue
			}
			seen[it] = struct{}{}
			out = append(out, it)
		}
	}
	return out
}
