package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	lineitemdomain "github.com/smallbiznis/costbook/internal/lineitem/domain"
	pricetierdomain "github.com/smallbiznis/costbook/internal/pricetier/domain"
	"github.com/smallbiznis/costbook/pkg/db/pagination"
)

// PendingImage is an image picked in the form but not yet uploaded.
type PendingImage struct {
	Name        string
	ContentType string
	Data        []byte
}

// SaveRequest is the full form state. An empty ID creates a budget.
//
// StartDate is compared with the stored start: a different value is a manual
// start edit and reprojects the end date. StartToday stamps today instead.
type SaveRequest struct {
	ID             string
	ClientID       string
	Status         string
	InternalRef    string
	ClientRef      string
	Collection     string
	Size           string
	StartDate      *time.Time
	StartToday     bool
	ClearStartDate bool
	Materials      []lineitemdomain.LineItem
	Extras         []lineitemdomain.LineItem
	PricingOptions []pricetierdomain.PricingOption
	PendingImages  []PendingImage
}

// PreviewRequest runs the form computations without touching the store.
type PreviewRequest struct {
	Materials      []lineitemdomain.LineItem
	Extras         []lineitemdomain.LineItem
	PricingOptions []pricetierdomain.PricingOption
	StartDate      *time.Time
	StartToday     bool
}

type Preview struct {
	Materials      []lineitemdomain.LineItem       `json:"materials"`
	Extras         []lineitemdomain.LineItem       `json:"extras"`
	TotalAmount    decimal.Decimal                 `json:"total_amount"`
	PricingOptions []pricetierdomain.PricingOption `json:"pricing_options"`
	LeadDays       int                             `json:"lead_days"`
	StartDate      *time.Time                      `json:"start_date,omitempty"`
	EndDate        *time.Time                      `json:"end_date,omitempty"`
}

type ListBudgetRequest struct {
	PageToken string
	PageSize  int32
	Status    string
	ClientID  string
}

type ListBudgetFilter struct {
	Status   Status
	ClientID snowflake.ID
}

type ListBudgetResponse struct {
	pagination.PageInfo
	Budgets []Budget `json:"budgets"`
}

type UpdateStatusRequest struct {
	ID     string
	Status string
}

type Service interface {
	Save(context.Context, SaveRequest) (Budget, error)
	Preview(context.Context, PreviewRequest) (Preview, error)
	Get(ctx context.Context, id string) (Budget, error)
	List(context.Context, ListBudgetRequest) (ListBudgetResponse, error)
	UpdateStatus(context.Context, UpdateStatusRequest) (Budget, error)
	Delete(ctx context.Context, id string) error
	Render(ctx context.Context, id string) ([]byte, error)
}

var (
	ErrInvalidOwner      = errors.New("invalid_owner")
	ErrInvalidClient     = errors.New("invalid_client")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrInvalidImage      = errors.New("invalid_image")
	ErrInvalidStartDate  = errors.New("invalid_start_date")
	ErrNotFound          = errors.New("not_found")
	ErrSaveInProgress    = errors.New("save_in_progress")
)
