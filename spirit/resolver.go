package spirit

import (
	"context"
	"fmt"
)

// =============================================================================
// TANK BALANCE RESOLVER - Latest reading at or before a date
// =============================================================================

type ResolveMode string

const (
	// ModeOpening takes the latest reading strictly before the day (yesterday's close).
	ModeOpening ResolveMode = "opening"

	// ModeClosing takes the latest reading at or before the day.
	ModeClosing ResolveMode = "closing"
)

// Valid reports whether m is one of the known modes.
func (m ResolveMode) Valid() bool {
	return m == ModeOpening || m == ModeClosing
}

func ParseResolveMode(s string) (ResolveMode, error) {
	switch ResolveMode(s) {
	case ModeOpening, ModeClosing:
		return ResolveMode(s), nil
	case "":
		return ModeClosing, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Resolver answers "what did this tank hold" from its append-only history.
// It never caches: current state is always re-derived from the log.
type Resolver struct {
	Store EventStore
}

func NewResolver(store EventStore) *Resolver {
	return &Resolver{Store: store}
}

// Resolve returns the tank reading for date under mode. A tank with no
// history resolves to zero.
func (r *Resolver) Resolve(ctx context.Context, tank TankID, date Date, mode ResolveMode) (TankReading, error) {
	if date.IsZero() {
		return TankReading{}, fmt.Errorf("%w: resolve %s", ErrInvalidDate, tank)
	}
	if !mode.Valid() {
		return TankReading{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	history, err := r.Store.TankHistory(ctx, tank)
	if err != nil {
		return TankReading{}, fmt.Errorf("tank history %s: %w", tank, err)
	}

	state, ok := SelectState(history, date, mode)
	if !ok {
		return TankReading{}, nil
	}
	return TankReading{
		BulkVolume:      state.BulkVolume,
		AlcoholicVolume: state.AlcoholicVolume,
		Strength:        state.Strength,
	}, nil
}

// ResolveGroup sums Resolve over tanks, in order.
func (r *Resolver) ResolveGroup(ctx context.Context, tanks []TankID, date Date, mode ResolveMode) (TankReading, error) {
	var total TankReading
	for _, tank := range tanks {
		reading, err := r.Resolve(ctx, tank, date, mode)
		if err != nil {
			return TankReading{}, err
		}
		total = total.Add(reading)
	}
	return total, nil
}

// SelectState scans history for the qualifying reading with the latest
// AsOf. Ties on AsOf go to the highest Seq; equal Seq goes to the later
// position in the slice. The input order is not trusted. An unknown mode
// matches nothing.
func SelectState(history []TankState, date Date, mode ResolveMode) (TankState, bool) {
	var (
		best  TankState
		found bool
	)
	for _, s := range history {
		if !qualifies(s.AsOf, date, mode) {
			continue
		}
		if !found || s.AsOf.After(best.AsOf) || (s.AsOf.Equal(best.AsOf) && s.Seq >= best.Seq) {
			best = s
			found = true
		}
	}
	return best, found
}

func qualifies(asOf, date Date, mode ResolveMode) bool {
	switch mode {
	case ModeOpening:
		return asOf.Before(date)
	case ModeClosing:
		return asOf.BeforeOrEqual(date)
	default:
		return false
	}
}
