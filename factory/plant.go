/*
Package factory provides JSON to Go plant configuration conversion.

PURPOSE:
  Converts a JSON plant definition into a spirit.Plant. The tank registry and
  the regulatory constants change without code changes: the excise officer's
  tolerance or the fee rate is a config edit, not a release.

JSON SCHEMA:
  {
    "name": "Main bond",
    "primary_tanks": ["PT-1", "PT-2"],
    "blending_tanks": ["BT-1"],
    "tolerance": "0.01",
    "allowable_loss_pct": "0.1",
    "fee_rate_per_litre": "12.50"
  }

  Numeric fields accept JSON strings or numbers.

DEFAULTS:
  tolerance           0.01 AL
  allowable_loss_pct  0.1 (%)
  fee_rate_per_litre  0

USAGE:
  f := factory.NewPlantFactory()
  plant, err := f.ParsePlant(jsonString)

SEE ALSO:
  - spirit/plant.go: Plant type and validation
  - cmd/server/main.go: Loads the plant file at startup
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/warp/spirit-ledger/spirit"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlantJSON is the JSON representation of a plant.
type PlantJSON struct {
	Name             string           `json:"name"`
	PrimaryTanks     []string         `json:"primary_tanks"`
	BlendingTanks    []string         `json:"blending_tanks"`
	Tolerance        *decimal.Decimal `json:"tolerance,omitempty"`
	AllowableLossPct *decimal.Decimal `json:"allowable_loss_pct,omitempty"`
	FeeRatePerLitre  *decimal.Decimal `json:"fee_rate_per_litre,omitempty"`
}

// =============================================================================
// PLANT FACTORY
// =============================================================================

type PlantFactory struct{}

func NewPlantFactory() *PlantFactory {
	return &PlantFactory{}
}

// ParsePlant parses a JSON string into a validated Plant.
func (f *PlantFactory) ParsePlant(jsonStr string) (spirit.Plant, error) {
	var pj PlantJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return spirit.Plant{}, fmt.Errorf("failed to parse plant JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// LoadPlant reads and parses a plant file.
func (f *PlantFactory) LoadPlant(path string) (spirit.Plant, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return spirit.Plant{}, fmt.Errorf("failed to read plant file: %w", err)
	}
	return f.ParsePlant(string(raw))
}

// FromJSON applies defaults and validates.
func (f *PlantFactory) FromJSON(pj PlantJSON) (spirit.Plant, error) {
	plant := spirit.Plant{
		Name:             pj.Name,
		PrimaryTanks:     toTankIDs(pj.PrimaryTanks),
		BlendingTanks:    toTankIDs(pj.BlendingTanks),
		Tolerance:        orDefault(pj.Tolerance, spirit.DefaultTolerance),
		AllowableLossPct: orDefault(pj.AllowableLossPct, spirit.DefaultAllowableLossPct),
		FeeRatePerLitre:  orDefault(pj.FeeRatePerLitre, decimal.Zero),
	}
	if err := plant.Validate(); err != nil {
		return spirit.Plant{}, err
	}
	return plant, nil
}

// ToJSON is the inverse of FromJSON.
func (f *PlantFactory) ToJSON(p spirit.Plant) PlantJSON {
	tol, allow, fee := p.Tolerance, p.AllowableLossPct, p.FeeRatePerLitre
	return PlantJSON{
		Name:             p.Name,
		PrimaryTanks:     fromTankIDs(p.PrimaryTanks),
		BlendingTanks:    fromTankIDs(p.BlendingTanks),
		Tolerance:        &tol,
		AllowableLossPct: &allow,
		FeeRatePerLitre:  &fee,
	}
}

// DefaultPlantJSON is the single-bond layout used when no file is given.
func DefaultPlantJSON() string {
	return `{
  "name": "Bond 1",
  "primary_tanks": ["PT-1", "PT-2"],
  "blending_tanks": ["BT-1", "BT-2"],
  "tolerance": "0.01",
  "allowable_loss_pct": "0.1",
  "fee_rate_per_litre": "0"
}`
}

func orDefault(v *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if v == nil {
		return def
	}
	return *v
}

func toTankIDs(ids []string) []spirit.TankID {
	out := make([]spirit.TankID, len(ids))
	for i, id := range ids {
		out[i] = spirit.TankID(id)
	}
	return out
}

func fromTankIDs(ids []spirit.TankID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
