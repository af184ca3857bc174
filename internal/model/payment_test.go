package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeItemsUnion(t *testing.T) {
	existing := []PaymentItem{{Kind: ItemEnrollment, ID: 1}, {Kind: ItemMembership, ID: 2}}
	extra := []PaymentItem{{Kind: ItemMembership, ID: 2}, {Kind: ItemEnrollment, ID: 2}, {Kind: ItemEnrollment, ID: 2}}

	got := MergeItems(existing, extra)
	require.Len(t, got, 3)
	assert.Equal(t, []PaymentItem{
		{Kind: ItemEnrollment, ID: 1},
		{Kind: ItemMembership, ID: 2},
		{Kind: ItemEnrollment, ID: 2},
	}, got)
}

func TestPaymentHasItem(t *testing.T) {
	p := Payment{Items: []PaymentItem{{Kind: ItemEnrollment, ID: 7}}}
	assert.True(t, p.HasItem(PaymentItem{Kind: ItemEnrollment, ID: 7}))
	assert.False(t, p.HasItem(PaymentItem{Kind: ItemMembership, ID: 7}))
}

func TestMembershipTierName(t *testing.T) {
	assert.Equal(t, "VIP Membership", MembershipTierName("vip"))
	assert.Equal(t, "gold", MembershipTierName("gold"))
	assert.True(t, ValidMembershipType("basic"))
	assert.False(t, ValidMembershipType("gold"))
}
