package models

import (
	"fmt"
	"strings"
)

// Tier is a subscription level. Values are the labels stored on user documents.
type Tier string

const (
	TierFree    Tier = "Free Tier"
	TierPremium Tier = "Premium Tier"
	TierVIP     Tier = "VIP / Elite Tier"
	TierVVIP    Tier = "VVIP / Pro Elite Tier"
)

// PaidTiers lists every tier above Free, lowest first.
var PaidTiers = []Tier{TierPremium, TierVIP, TierVVIP}

var tierRank = map[Tier]int{
	TierFree:    0,
	TierPremium: 1,
	TierVIP:     2,
	TierVVIP:    3,
}

var tierAliases = map[string]Tier{
	"free":                  TierFree,
	"free tier":             TierFree,
	"premium":               TierPremium,
	"premium tier":          TierPremium,
	"vip":                   TierVIP,
	"elite":                 TierVIP,
	"vip / elite tier":      TierVIP,
	"vvip":                  TierVVIP,
	"pro elite":             TierVVIP,
	"vvip / pro elite tier": TierVVIP,
}

// ParseTier accepts a stored label or a short name ("Premium", "vip") case-insensitively.
func ParseTier(s string) (Tier, error) {
	t, ok := tierAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// IsPaid reports whether t is above the Free tier.
func (t Tier) IsPaid() bool {
	return t.Rank() > 0
}

// Rank orders tiers; unknown tiers rank with Free.
func (t Tier) Rank() int {
	return tierRank[t]
}

// AtLeast reports whether t ranks at or above other.
func (t Tier) AtLeast(other Tier) bool {
	return t.Rank() >= other.Rank()
}

// TierStrings converts tiers to plain strings for Firestore "in" filters.
func TierStrings(tiers []Tier) []string {
	out := make([]string, len(tiers))
	for i, t := range tiers {
		out[i] = string(t)
	}
	return out
}
