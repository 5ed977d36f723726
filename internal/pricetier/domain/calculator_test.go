package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestDefaultOptionsSeedMarginsWithZeroDerivedFields(t *testing.T) {
	options := DefaultOptions()
	require.Len(t, options, TierCount)

	for i, want := range []string{"10", "15", "20"} {
		assert.True(t, options[i].MarginPercentage.Equal(dec(want)))
		assert.True(t, options[i].MarginAmount.IsZero())
		assert.True(t, options[i].TotalCost.IsZero())
		assert.True(t, options[i].ClientPrice.IsZero())
	}
}

func TestNewOptionsFallsBackOnWrongCount(t *testing.T) {
	options := NewOptions([]float64{5})
	require.Len(t, options, TierCount)
	assert.True(t, options[0].MarginPercentage.Equal(dec("10")))
}

func TestRecalculateTierFormulas(t *testing.T) {
	bases := []string{"0", "1", "100", "1234.56", "0.07"}
	for _, b := range bases {
		base := dec(b)
		for _, tier := range DefaultOptions() {
			got := RecalculateTier(tier, base)

			wantMargin := base.Mul(tier.MarginPercentage).Div(decimal.NewFromInt(100))
			assert.True(t, got.MarginAmount.Equal(wantMargin), "margin for base %s", b)
			assert.True(t, got.TotalCost.Equal(base.Add(wantMargin)), "total for base %s", b)
			assert.True(t, got.ClientPrice.Equal(got.TotalCost), "client price for base %s", b)
		}
	}
}

func TestRecalculateAllOnHundred(t *testing.T) {
	got := RecalculateAll(DefaultOptions(), dec("100"))

	assert.True(t, got[0].ClientPrice.Equal(dec("110")))
	assert.True(t, got[1].ClientPrice.Equal(dec("115")))
	assert.True(t, got[2].ClientPrice.Equal(dec("120")))
	assert.True(t, got[1].MarginAmount.Equal(dec("15")))
}

func TestRecalculateIsIdempotent(t *testing.T) {
	base := dec("987.65")
	once := RecalculateAll(DefaultOptions(), base)
	twice := RecalculateAll(once, base)

	for i := range once {
		assert.True(t, once[i].MarginAmount.Equal(twice[i].MarginAmount))
		assert.True(t, once[i].TotalCost.Equal(twice[i].TotalCost))
		assert.True(t, once[i].ClientPrice.Equal(twice[i].ClientPrice))
	}
}

// The per-tier quantity is stored but is not an input to any derived value.
func TestTierQuantityIsNotPriced(t *testing.T) {
	base := dec("100")
	plain := RecalculateTier(PricingOption{MarginPercentage: dec("10")}, base)
	withQty := RecalculateTier(PricingOption{MarginPercentage: dec("10"), Quantity: dec("500")}, base)

	assert.True(t, plain.ClientPrice.Equal(withQty.ClientPrice))
	assert.True(t, plain.TotalCost.Equal(withQty.TotalCost))
	assert.True(t, withQty.Quantity.Equal(dec("500")))
}

func TestRecalculateAllDoesNotMutateInput(t *testing.T) {
	tiers := DefaultOptions()
	_ = RecalculateAll(tiers, dec("100"))
	assert.True(t, tiers[0].ClientPrice.IsZero())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(DefaultOptions()))
	assert.ErrorIs(t, Validate(DefaultOptions()[:2]), ErrInvalidTierCount)

	tiers := DefaultOptions()
	tiers[2].MarginPercentage = dec("-1")
	assert.ErrorIs(t, Validate(tiers), ErrInvalidMargin)
}
