package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	lineitemdomain "github.com/smallbiznis/costbook/internal/lineitem/domain"
	pricetierdomain "github.com/smallbiznis/costbook/internal/pricetier/domain"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var ErrInvalidStatus = errors.New("invalid_status")

func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusDraft:
		return StatusDraft, nil
	case StatusSent:
		return StatusSent, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return "", ErrInvalidStatus
	}
}

// CanTransition reports whether a budget may move from s to next.
// Any budget may return to draft; otherwise draft -> sent -> approved|rejected.
func (s Status) CanTransition(next Status) bool {
	if s == next || next == StatusDraft {
		return true
	}
	switch s {
	case StatusDraft:
		return next == StatusSent
	case StatusSent:
		return next == StatusApproved || next == StatusRejected
	default:
		return false
	}
}

type Budget struct {
	ID             snowflake.ID                                       `gorm:"primaryKey" json:"id"`
	OwnerID        snowflake.ID                                       `gorm:"column:owner_id;not null;index" json:"owner_id"`
	ClientID       snowflake.ID                                       `gorm:"column:client_id;not null;index" json:"client_id"`
	Status         Status                                             `gorm:"type:text;not null;default:'draft'" json:"status"`
	InternalRef    string                                             `gorm:"column:internal_ref;type:text;not null;default:''" json:"internal_ref"`
	ClientRef      string                                             `gorm:"column:client_ref;type:text;not null;default:''" json:"client_ref"`
	Collection     string                                             `gorm:"type:text;not null;default:''" json:"collection"`
	Size           string                                             `gorm:"type:text;not null;default:''" json:"size"`
	ImageURLs      datatypes.JSONSlice[string]                        `gorm:"column:image_urls;not null" json:"image_urls"`
	StartDate      *time.Time                                         `gorm:"column:start_date;type:date" json:"start_date,omitempty"`
	EndDate        *time.Time                                         `gorm:"column:end_date;type:date" json:"end_date,omitempty"`
	TotalAmount    decimal.Decimal                                    `gorm:"column:total_amount;type:numeric;not null" json:"total_amount"`
	PricingOptions datatypes.JSONSlice[pricetierdomain.PricingOption] `gorm:"column:pricing_options;not null" json:"pricing_options"`
	CreatedAt      time.Time                                          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time                                          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Materials []lineitemdomain.LineItem `gorm:"-" json:"materials"`
	Extras    []lineitemdomain.LineItem `gorm:"-" json:"extras"`
}

func (Budget) TableName() string { return "budgets" }

// SplitLines files stored lines into the materials and extras collections.
func (b *Budget) SplitLines(lines []lineitemdomain.LineItem) {
	b.Materials = make([]lineitemdomain.LineItem, 0, len(lines))
	b.Extras = make([]lineitemdomain.LineItem, 0)
	for _, line := range lines {
		switch line.Variant {
		case lineitemdomain.VariantExtra:
			b.Extras = append(b.Extras, line)
		default:
			b.Materials = append(b.Materials, line)
		}
	}
}
