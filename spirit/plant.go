package spirit

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultTolerance is the reconciliation tolerance in AL.
var DefaultTolerance = decimal.RequireFromString("0.01")

// =============================================================================
// PLANT - Tank registry and regulatory constants
// =============================================================================

// Plant describes the bonded store: which tanks sit in which pool, and the
// constants the engine reconciles against.
type Plant struct {
	Name          string
	PrimaryTanks  []TankID
	BlendingTanks []TankID

	// Tolerance is the maximum |actual - expected| per pool, in AL.
	Tolerance decimal.Decimal

	// AllowableLossPct is the production allowance used when an event
	// does not carry its own, as a percentage (0.1 = 0.1%).
	AllowableLossPct decimal.Decimal

	// FeeRatePerLitre is charged on bulk litres bottled.
	FeeRatePerLitre decimal.Decimal
}

// PoolOf returns the pool a tank belongs to.
func (p Plant) PoolOf(tank TankID) (Pool, bool) {
	for _, t := range p.PrimaryTanks {
		if t == tank {
			return PoolPrimary, true
		}
	}
	for _, t := range p.BlendingTanks {
		if t == tank {
			return PoolBlending, true
		}
	}
	return "", false
}

// Tanks returns the tanks of a pool, or every tank for PoolAll.
func (p Plant) Tanks(pool Pool) []TankID {
	switch pool {
	case PoolPrimary:
		return p.PrimaryTanks
	case PoolBlending:
		return p.BlendingTanks
	default:
		all := make([]TankID, 0, len(p.PrimaryTanks)+len(p.BlendingTanks))
		all = append(all, p.PrimaryTanks...)
		return append(all, p.BlendingTanks...)
	}
}

// Validate checks that both pools are populated and disjoint.
func (p Plant) Validate() error {
	if len(p.PrimaryTanks) == 0 || len(p.BlendingTanks) == 0 {
		return fmt.Errorf("%w: both primary and blending tanks are required", ErrInvalidPlant)
	}
	seen := make(map[TankID]Pool)
	for _, pool := range []Pool{PoolPrimary, PoolBlending} {
		for _, t := range p.Tanks(pool) {
			if t == "" {
				return fmt.Errorf("%w: empty tank id in %s pool", ErrInvalidPlant, pool)
			}
			if prev, dup := seen[t]; dup {
				return fmt.Errorf("%w: tank %s listed in %s and %s pools", ErrInvalidPlant, t, prev, pool)
			}
			seen[t] = pool
		}
	}
	if p.Tolerance.IsNegative() {
		return fmt.Errorf("%w: negative tolerance", ErrInvalidPlant)
	}
	if p.AllowableLossPct.IsNegative() {
		return fmt.Errorf("%w: negative allowable loss", ErrInvalidPlant)
	}
	if p.FeeRatePerLitre.IsNegative() {
		return fmt.Errorf("%w: negative fee rate", ErrInvalidPlant)
	}
	return nil
}
