package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidVariant     = errors.New("invalid_variant")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidUnit        = errors.New("invalid_unit")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidUnitPrice   = errors.New("invalid_unit_price")
	ErrInvalidMOQ         = errors.New("invalid_moq_quantity")
	ErrInvalidLeadTime    = errors.New("invalid_lead_time_days")
	ErrNotFound           = errors.New("line_item_not_found")
)

// MaxLeadTimeDays is the longest lead time a single line may declare.
const MaxLeadTimeDays = 3650

// NewBlank returns the line a form starts with: one unit at zero price.
func NewBlank(variant Variant) LineItem {
	return LineItem{
		Variant:   variant,
		Quantity:  decimal.NewFromInt(1),
		Unit:      UnitPiece,
		UnitPrice: decimal.Zero,
		LineCost:  decimal.Zero,
	}
}

// Recompute overwrites LineCost with Quantity * UnitPrice. No rounding is applied.
func Recompute(item LineItem) LineItem {
	item.LineCost = item.Quantity.Mul(item.UnitPrice)
	return item
}

// Validate checks the fields a line needs before it can be stored.
// Sign checks on numbers belong to input handling, not to costing.
func (l LineItem) Validate() error {
	if _, err := ParseVariant(string(l.Variant)); err != nil {
		return err
	}
	if strings.TrimSpace(l.Description) == "" {
		return ErrInvalidDescription
	}
	if _, err := ParseUnit(string(l.Unit)); err != nil {
		return err
	}
	if !l.HasMOQ && l.MOQQuantity != nil {
		return ErrInvalidMOQ
	}
	return nil
}

// ValidateInput rejects negative numbers and out of range lead times coming from API callers.
func (l LineItem) ValidateInput() error {
	if l.Quantity.IsNegative() {
		return ErrInvalidQuantity
	}
	if l.UnitPrice.IsNegative() {
		return ErrInvalidUnitPrice
	}
	if l.MOQQuantity != nil && l.MOQQuantity.IsNegative() {
		return ErrInvalidMOQ
	}
	if l.LeadTimeDays != nil && (*l.LeadTimeDays < 0 || *l.LeadTimeDays > MaxLeadTimeDays) {
		return ErrInvalidLeadTime
	}
	return l.Validate()
}

func ParseVariant(value string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(value))) {
	case VariantMaterial:
		return VariantMaterial, nil
	case VariantExtra:
		return VariantExtra, nil
	default:
		return "", ErrInvalidVariant
	}
}

func ParseUnit(value string) (Unit, error) {
	switch Unit(strings.ToLower(strings.TrimSpace(value))) {
	case UnitPiece:
		return UnitPiece, nil
	case UnitMeter:
		return UnitMeter, nil
	case UnitKilogram:
		return UnitKilogram, nil
	case UnitThousand:
		return UnitThousand, nil
	default:
		return "", ErrInvalidUnit
	}
}

// SumLineCost adds up LineCost over items.
func SumLineCost(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineCost)
	}
	return total
}
