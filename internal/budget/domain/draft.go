package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/costbook/internal/leadtime"
	lineitemdomain "github.com/smallbiznis/costbook/internal/lineitem/domain"
	pricetierdomain "github.com/smallbiznis/costbook/internal/pricetier/domain"
)

var ErrLineIndexOutOfRange = errors.New("invalid_line_index")

// LinePatch carries the fields of a line edit; nil fields are left alone.
type LinePatch struct {
	Description   *string
	Supplier      *string
	Quantity      *decimal.Decimal
	Unit          *lineitemdomain.Unit
	UnitPrice     *decimal.Decimal
	HasMOQ        *bool
	MOQQuantity   *decimal.Decimal
	LeadTimeDays  *int
	ClearLeadTime bool
}

// Draft is one editing session over a budget. Every mutator recomputes what
// depends on it before returning:
//
//   - line edits recompute that line's cost;
//   - material edits recompute the total and all pricing tiers;
//   - a margin edit recomputes only its own tier;
//   - only StartToday and SetStartDate recompute the end date.
//
// Lead time edits leave EndDate as it was until one of the two start triggers runs.
type Draft struct {
	Materials      []lineitemdomain.LineItem
	Extras         []lineitemdomain.LineItem
	PricingOptions []pricetierdomain.PricingOption
	TotalAmount    decimal.Decimal
	StartDate      *time.Time
	EndDate        *time.Time

	fallbackLeadDays int
}

// NewDraft starts an empty session with the given seed tiers.
func NewDraft(options []pricetierdomain.PricingOption, fallbackLeadDays int) *Draft {
	if len(options) != pricetierdomain.TierCount {
		options = pricetierdomain.DefaultOptions()
	}
	return &Draft{
		Materials:        []lineitemdomain.LineItem{},
		Extras:           []lineitemdomain.LineItem{},
		PricingOptions:   append([]pricetierdomain.PricingOption(nil), options...),
		TotalAmount:      decimal.Zero,
		fallbackLeadDays: fallbackLeadDays,
	}
}

// DraftFromBudget opens a session over a stored budget, keeping its dates as stored.
func DraftFromBudget(b Budget, fallbackLeadDays int) *Draft {
	d := NewDraft(b.PricingOptions, fallbackLeadDays)
	d.StartDate = b.StartDate
	d.EndDate = b.EndDate
	d.ReplaceLines(b.Materials, b.Extras)
	return d
}

func (d *Draft) lines(variant lineitemdomain.Variant) (*[]lineitemdomain.LineItem, error) {
	switch variant {
	case lineitemdomain.VariantMaterial:
		return &d.Materials, nil
	case lineitemdomain.VariantExtra:
		return &d.Extras, nil
	default:
		return nil, lineitemdomain.ErrInvalidVariant
	}
}

// AddLine appends a blank line and returns its index.
func (d *Draft) AddLine(variant lineitemdomain.Variant) (int, error) {
	lines, err := d.lines(variant)
	if err != nil {
		return 0, err
	}
	*lines = append(*lines, lineitemdomain.NewBlank(variant))
	d.afterLineChange(variant)
	return len(*lines) - 1, nil
}

func (d *Draft) UpdateLine(variant lineitemdomain.Variant, index int, patch LinePatch) error {
	lines, err := d.lines(variant)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(*lines) {
		return ErrLineIndexOutOfRange
	}

	line := (*lines)[index]
	if patch.Description != nil {
		line.Description = *patch.Description
	}
	if patch.Supplier != nil {
		line.Supplier = *patch.Supplier
	}
	if patch.Quantity != nil {
		line.Quantity = *patch.Quantity
	}
	if patch.Unit != nil {
		line.Unit = *patch.Unit
	}
	if patch.UnitPrice != nil {
		line.UnitPrice = *patch.UnitPrice
	}
	if patch.HasMOQ != nil {
		line.HasMOQ = *patch.HasMOQ
	}
	if patch.MOQQuantity != nil {
		moq := *patch.MOQQuantity
		line.MOQQuantity = &moq
	}
	if !line.HasMOQ {
		line.MOQQuantity = nil
	}
	if patch.ClearLeadTime {
		line.LeadTimeDays = nil
	} else if patch.LeadTimeDays != nil {
		days := *patch.LeadTimeDays
		line.LeadTimeDays = &days
	}

	(*lines)[index] = lineitemdomain.Recompute(line)
	d.afterLineChange(variant)
	return nil
}

// RemoveLine drops the line at index, keeping the order of the rest.
func (d *Draft) RemoveLine(variant lineitemdomain.Variant, index int) error {
	lines, err := d.lines(variant)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(*lines) {
		return ErrLineIndexOutOfRange
	}
	*lines = append((*lines)[:index:index], (*lines)[index+1:]...)
	d.afterLineChange(variant)
	return nil
}

// ReplaceLines swaps both collections at once, forcing each line's variant to
// the collection it sits in.
func (d *Draft) ReplaceLines(materials, extras []lineitemdomain.LineItem) {
	d.Materials = normalizeLines(materials, lineitemdomain.VariantMaterial)
	d.Extras = normalizeLines(extras, lineitemdomain.VariantExtra)
	d.recomputePricing()
}

func normalizeLines(lines []lineitemdomain.LineItem, variant lineitemdomain.Variant) []lineitemdomain.LineItem {
	out := make([]lineitemdomain.LineItem, 0, len(lines))
	for _, line := range lines {
		line.Variant = variant
		out = append(out, lineitemdomain.Recompute(line))
	}
	return out
}

// SetPricingOptions replaces the tier inputs and recomputes every tier.
func (d *Draft) SetPricingOptions(options []pricetierdomain.PricingOption) error {
	if err := pricetierdomain.Validate(options); err != nil {
		return err
	}
	d.PricingOptions = append([]pricetierdomain.PricingOption(nil), options...)
	d.recomputePricing()
	return nil
}

// SetMargin edits one tier's margin and recomputes only that tier.
func (d *Draft) SetMargin(index int, margin decimal.Decimal) error {
	if index < 0 || index >= len(d.PricingOptions) {
		return pricetierdomain.ErrInvalidTier
	}
	if margin.IsNegative() {
		return pricetierdomain.ErrInvalidMargin
	}
	tier := d.PricingOptions[index]
	tier.MarginPercentage = margin
	d.PricingOptions[index] = pricetierdomain.RecalculateTier(tier, d.BaseCost())
	return nil
}

// SetTierQuantity stores the informational quantity of a tier. Nothing is recomputed.
func (d *Draft) SetTierQuantity(index int, quantity decimal.Decimal) error {
	if index < 0 || index >= len(d.PricingOptions) {
		return pricetierdomain.ErrInvalidTier
	}
	d.PricingOptions[index].Quantity = quantity
	return nil
}

// StartToday stamps today's date as the start and projects the end date.
func (d *Draft) StartToday(now time.Time) {
	d.SetStartDate(now)
}

// SetStartDate holds date as the start and projects the end date.
func (d *Draft) SetStartDate(date time.Time) {
	start := leadtime.Date(date)
	end := leadtime.ProjectEndDate(start, d.LeadDays())
	d.StartDate = &start
	d.EndDate = &end
}

func (d *Draft) ClearStartDate() {
	d.StartDate = nil
	d.EndDate = nil
}

// BaseCost is the sum of material line costs. Extras never count.
func (d *Draft) BaseCost() decimal.Decimal {
	return lineitemdomain.SumLineCost(d.Materials)
}

// LeadDays is the business-day duration the next projection would use.
func (d *Draft) LeadDays() int {
	return leadtime.TotalLeadDays(d.fallbackLeadDays, d.Materials, d.Extras)
}

func (d *Draft) afterLineChange(variant lineitemdomain.Variant) {
	if variant == lineitemdomain.VariantMaterial {
		d.recomputePricing()
	}
}

func (d *Draft) recomputePricing() {
	base := d.BaseCost()
	d.TotalAmount = base
	d.PricingOptions = pricetierdomain.RecalculateAll(d.PricingOptions, base)
}

// Apply copies the computed state onto b.
func (d *Draft) Apply(b *Budget) {
	b.Materials = d.Materials
	b.Extras = d.Extras
	b.TotalAmount = d.TotalAmount
	b.PricingOptions = d.PricingOptions
	b.StartDate = d.StartDate
	b.EndDate = d.EndDate
}
