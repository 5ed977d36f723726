package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Variant string

const (
	VariantMaterial Variant = "material"
	VariantExtra    Variant = "extra"
)

// Unit is the unit of measure a line is quoted in.
type Unit string

const (
	UnitPiece    Unit = "unit"
	UnitMeter    Unit = "meter"
	UnitKilogram Unit = "kilogram"
	// UnitThousand is a lot of one thousand pieces.
	UnitThousand Unit = "thousand"
)

type LineItem struct {
	ID           snowflake.ID     `gorm:"primaryKey" json:"id"`
	BudgetID     snowflake.ID     `gorm:"column:budget_id;not null;index" json:"budget_id"`
	Variant      Variant          `gorm:"type:text;not null" json:"variant"`
	Description  string           `gorm:"type:text;not null" json:"description"`
	Supplier     string           `gorm:"type:text;not null;default:''" json:"supplier"`
	Quantity     decimal.Decimal  `gorm:"type:numeric;not null" json:"quantity"`
	Unit         Unit             `gorm:"type:text;not null" json:"unit"`
	UnitPrice    decimal.Decimal  `gorm:"type:numeric;not null" json:"unit_price"`
	LineCost     decimal.Decimal  `gorm:"type:numeric;not null" json:"line_cost"`
	HasMOQ       bool             `gorm:"column:has_moq;not null;default:false" json:"has_moq"`
	MOQQuantity  *decimal.Decimal `gorm:"column:moq_quantity;type:numeric" json:"moq_quantity,omitempty"`
	LeadTimeDays *int             `gorm:"column:lead_time_days" json:"lead_time_days,omitempty"`
	Position     int              `gorm:"not null;default:0" json:"position"`
	CreatedAt    time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (LineItem) TableName() string { return "budget_line_items" }

// Persisted reports whether the line already has an identity in the store.
func (l LineItem) Persisted() bool {
	return l.ID != 0
}
