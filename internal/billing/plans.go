// Package billing provides plan entitlements and Stripe price mapping.
package billing

import (
	"github.com/buzzflixai/buzzflix-droplet/internal/config"
	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// PlanRegistry defines the authoritative entitlements for each tier.
type PlanRegistry interface {
	// GetLimits returns the entitlements for the given plan tier. Unknown
	// tiers get the entry-level (starter) limits to fail safely.
	GetLimits(tier types.PlanTier) types.PlanLimits
}

// staticPlanRegistry is a compile-time plan registry backed by an in-memory
// map. It is the standard implementation; plans change rarely enough that a
// deploy is acceptable.
type staticPlanRegistry struct {
	limits map[types.PlanTier]types.PlanLimits
}

// planDefaults defines the hardcoded entitlements per tier. Starter is the
// entry tier: videos are produced on demand by the recurrence loop only.
// Growth and Scale carry guaranteed delivery, which pre-books a full week
// of slots the first time a series is triggered.
var planDefaults = map[types.PlanTier]types.PlanLimits{
	types.PlanStarter: {
		MaxWeeklyCadence:   3,
		GuaranteedDelivery: false,
	},
	types.PlanGrowth: {
		MaxWeeklyCadence:   7,
		GuaranteedDelivery: true,
	},
	types.PlanScale: {
		MaxWeeklyCadence:   21,
		GuaranteedDelivery: true,
	},
}

var starterLimits = planDefaults[types.PlanStarter]

// NewStaticPlanRegistry returns a PlanRegistry backed by the hardcoded
// entitlements.
func NewStaticPlanRegistry() PlanRegistry {
	m := make(map[types.PlanTier]types.PlanLimits, len(planDefaults))
	for k, v := range planDefaults {
		m[k] = v
	}
	return &staticPlanRegistry{limits: m}
}

// GetLimits returns the entitlements for the given plan tier, falling back
// to starter for unknown tiers.
func (r *staticPlanRegistry) GetLimits(tier types.PlanTier) types.PlanLimits {
	if limits, ok := r.limits[tier]; ok {
		return limits
	}
	return starterLimits
}

// PriceToPlan builds the Stripe price ID to plan tier mapping from
// configuration. Unset price IDs are skipped.
func PriceToPlan(cfg config.BillingConfig) map[string]types.PlanTier {
	m := make(map[string]types.PlanTier, 3)
	if cfg.PriceStarter != "" {
		m[cfg.PriceStarter] = types.PlanStarter
	}
	if cfg.PriceGrowth != "" {
		m[cfg.PriceGrowth] = types.PlanGrowth
	}
	if cfg.PriceScale != "" {
		m[cfg.PriceScale] = types.PlanScale
	}
	return m
}
