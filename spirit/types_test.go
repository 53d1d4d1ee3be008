package spirit_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/spirit-ledger/spirit"
)

// =============================================================================
// TANK STATE TESTS
// =============================================================================

func TestNewTankState_DerivesAL(t *testing.T) {
	s := state("PT-1", "5000", "96", march3)

	assertDec(t, "4800", s.AlcoholicVolume)
	assert.NoError(t, s.Validate())
}

func TestTankState_Validate(t *testing.T) {
	cases := []struct {
		name  string
		state spirit.TankState
		want  error
	}{
		{"missing tank", spirit.TankState{AsOf: march3}, spirit.ErrInvalidTankState},
		{"missing date", spirit.TankState{TankID: "PT-1"}, spirit.ErrInvalidDate},
		{"negative bulk", state("PT-1", "-1", "40", march3), spirit.ErrInvalidTankState},
		{"strength over 100", state("PT-1", "10", "101", march3), spirit.ErrInvalidTankState},
		{"AL over bulk", spirit.TankState{TankID: "PT-1", AsOf: march3, BulkVolume: d("10"), AlcoholicVolume: d("11"), Strength: d("40")}, spirit.ErrInvalidTankState},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.state.Validate()
			assert.ErrorIs(t, err, c.want)

			var ive *spirit.InvalidValueError
			assert.ErrorAs(t, err, &ive)
			assert.True(t, spirit.IsClientError(err))
		})
	}
}

func TestTankReading_Add_EmptyGroup(t *testing.T) {
	var total spirit.TankReading
	total = total.Add(spirit.TankReading{})

	assert.True(t, total.Strength.IsZero())
}

// =============================================================================
// EVENT TESTS
// =============================================================================

func TestReceiptEvent_Variance(t *testing.T) {
	short := spirit.ReceiptEvent{AdvisedAL: d("1000"), ReceivedAL: d("998")}
	assertDec(t, "2", short.TransitWastage())
	assertDec(t, "0", short.TransitIncrease())

	over := spirit.ReceiptEvent{AdvisedAL: d("800"), ReceivedAL: d("801.5")}
	assertDec(t, "0", over.TransitWastage())
	assertDec(t, "1.5", over.TransitIncrease())
}

func TestTransferEvent_Validate(t *testing.T) {
	ok := spirit.TransferEvent{SourceTank: "PT-1", DestinationTank: "BT-1", BulkVolume: d("10"), AlcoholicVolume: d("8"), OperationDate: march3}
	assert.NoError(t, ok.Validate())
	assert.False(t, ok.IsDilution())

	overAL := ok
	overAL.AlcoholicVolume = d("11")
	assert.ErrorIs(t, overAL.Validate(), spirit.ErrInvalidEvent)

	noDate := ok
	noDate.OperationDate = spirit.Date{}
	assert.ErrorIs(t, noDate.Validate(), spirit.ErrInvalidDate)

	negSample := ok
	negSample.SampleAL = dp("-0.1")
	assert.ErrorIs(t, negSample.Validate(), spirit.ErrInvalidEvent)

	dilution := spirit.TransferEvent{SourceTank: "BT-1", DestinationTank: "BT-1", BulkVolume: d("625"), AlcoholicVolume: d("0"), OperationDate: march3}
	assert.True(t, dilution.IsDilution())
	assert.NoError(t, dilution.Validate())
}

func TestProductionEvent_BottledFromCountsOnly(t *testing.T) {
	e := spirit.ProductionEvent{
		ProductionDate: march3,
		MeteredAL:      d("450"),
		Strength:       d("40"),
		Bottles: []spirit.BottleCount{
			{UnitLitres: d("0.75"), Count: 1497},
			{UnitLitres: d("1"), Count: 1},
		},
	}

	assertDec(t, "1123.75", e.BottledBulk())
	assertDec(t, "449.5", e.BottledAL())
	assertDec(t, "0.1", e.Allowance())
	assert.NoError(t, e.Validate())
}

func TestProductionEvent_Validate_BadBottle(t *testing.T) {
	e := spirit.ProductionEvent{
		ProductionDate: march3,
		Strength:       d("40"),
		Bottles:        []spirit.BottleCount{{UnitLitres: d("0"), Count: 1}},
	}

	assert.ErrorIs(t, e.Validate(), spirit.ErrInvalidEvent)
}

// =============================================================================
// DATE TESTS
// =============================================================================

func TestParseDate(t *testing.T) {
	got, err := spirit.ParseDate("2025-03-03")
	require.NoError(t, err)
	assert.True(t, got.Equal(march3))

	_, err = spirit.ParseDate("")
	assert.ErrorIs(t, err, spirit.ErrInvalidDate)

	_, err = spirit.ParseDate("03/03/2025")
	assert.ErrorIs(t, err, spirit.ErrInvalidDate)
}

func TestDate_JSON(t *testing.T) {
	raw, err := json.Marshal(march3)
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-03"`, string(raw))

	var back spirit.Date
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Equal(march3))

	var zero spirit.Date
	require.NoError(t, json.Unmarshal([]byte(`""`), &zero))
	assert.True(t, zero.IsZero())
}

func TestDateOf_DropsClock(t *testing.T) {
	got := spirit.DateOf(time.Date(2025, time.March, 3, 23, 59, 0, 0, time.UTC))

	assert.True(t, got.Equal(march3))
	assert.True(t, march2.Before(got))
	assert.True(t, march4.After(got))
}

func TestDaysInRange(t *testing.T) {
	days := spirit.DaysInRange(march2, march4)

	require.Len(t, days, 3)
	assert.Equal(t, "2025-03-02", days[0].String())
	assert.Equal(t, "2025-03-04", days[2].String())
	assert.Empty(t, spirit.DaysInRange(march4, march2))
}

// =============================================================================
// PLANT TESTS
// =============================================================================

func TestPlant_PoolOf(t *testing.T) {
	p := testPlant()

	pool, ok := p.PoolOf("PT-2")
	assert.True(t, ok)
	assert.Equal(t, spirit.PoolPrimary, pool)

	pool, ok = p.PoolOf("BT-1")
	assert.True(t, ok)
	assert.Equal(t, spirit.PoolBlending, pool)

	_, ok = p.PoolOf("XX-1")
	assert.False(t, ok)

	assert.Len(t, p.Tanks(spirit.PoolAll), 4)
}

func TestPlant_Validate(t *testing.T) {
	assert.NoError(t, testPlant().Validate())

	overlap := testPlant()
	overlap.BlendingTanks = append(overlap.BlendingTanks, "PT-1")
	assert.ErrorIs(t, overlap.Validate(), spirit.ErrInvalidPlant)

	empty := testPlant()
	empty.PrimaryTanks = nil
	assert.ErrorIs(t, empty.Validate(), spirit.ErrInvalidPlant)

	negative := testPlant()
	negative.Tolerance = d("-0.01")
	assert.ErrorIs(t, negative.Validate(), spirit.ErrInvalidPlant)
}

func TestPool_Label(t *testing.T) {
	assert.Equal(t, "primary-pool", spirit.PoolPrimary.Label())
	assert.Equal(t, "blending-pool", spirit.PoolBlending.Label())
	assert.Equal(t, "all-tanks", spirit.PoolAll.Label())
}
