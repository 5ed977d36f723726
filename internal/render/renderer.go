package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/page"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	budgetdomain "github.com/smallbiznis/costbook/internal/budget/domain"
	clientdomain "github.com/smallbiznis/costbook/internal/client/domain"
	appconfig "github.com/smallbiznis/costbook/internal/config"
	lineitemdomain "github.com/smallbiznis/costbook/internal/lineitem/domain"
	"go.uber.org/fx"
)

// DefaultPageThreshold is the vertical cursor limit per page, in millimetres.
const DefaultPageThreshold = 250.0

// Document is a fully resolved budget ready for rendering.
type Document struct {
	Budget budgetdomain.Budget
	Client clientdomain.Client
}

type Renderer interface {
	RenderBudget(ctx context.Context, doc Document) ([]byte, error)
}

type PDFRenderer struct {
	threshold float64
}

func New(cfg appconfig.Config) Renderer {
	return NewPDFRenderer(cfg.PDFPageThreshold)
}

func NewPDFRenderer(threshold float64) *PDFRenderer {
	if threshold <= 0 {
		threshold = DefaultPageThreshold
	}
	return &PDFRenderer{threshold: threshold}
}

type sizedRow struct {
	height float64
	row    core.Row
}

func (r *PDFRenderer) RenderBudget(ctx context.Context, doc Document) ([]byte, error) {
	if doc.Budget.ID == 0 {
		return nil, errors.New("render: budget is not persisted")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := r.layout(doc)
	heights := make([]float64, len(rows))
	for i, sr := range rows {
		heights[i] = sr.height
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	for _, indexes := range Paginate(heights, r.threshold) {
		pageRows := make([]core.Row, 0, len(indexes))
		for _, i := range indexes {
			pageRows = append(pageRows, rows[i].row)
		}
		m.AddPages(page.New().Add(pageRows...))
	}

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render budget %s: %w", doc.Budget.ID, err)
	}
	return out.GetBytes(), nil
}

func (r *PDFRenderer) layout(doc Document) []sizedRow {
	b := doc.Budget
	var rows []sizedRow
	add := func(height float64, cols ...core.Col) {
		rows = append(rows, sizedRow{height: height, row: row.New(height).Add(cols...)})
	}
	bold := props.Text{Style: fontstyle.Bold, Size: 9}
	small := props.Text{Size: 9}
	right := props.Text{Size: 9, Align: align.Right}
	boldRight := props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}

	add(12, text.NewCol(12, "Budget", props.Text{Size: 20, Style: fontstyle.Bold}))
	add(24,
		col.New(6).Add(
			text.New("Internal ref: "+b.InternalRef, props.Text{Size: 9}),
			text.New("Client ref: "+b.ClientRef, props.Text{Size: 9, Top: 5}),
			text.New("Collection: "+b.Collection, props.Text{Size: 9, Top: 10}),
			text.New("Size: "+b.Size, props.Text{Size: 9, Top: 15}),
		),
		col.New(6).Add(
			text.New("Client", props.Text{Size: 9, Style: fontstyle.Bold}),
			text.New(clientLine(doc.Client), props.Text{Size: 9, Top: 5}),
			text.New("Status: "+string(b.Status), props.Text{Size: 9, Top: 10}),
			text.New("Schedule: "+scheduleLine(b.StartDate, b.EndDate), props.Text{Size: 9, Top: 15}),
		),
	)

	section := func(title string, lines []lineitemdomain.LineItem) {
		add(10, text.NewCol(12, title, props.Text{Size: 12, Style: fontstyle.Bold, Top: 3}))
		add(8,
			text.NewCol(4, "Description", bold),
			text.NewCol(2, "Supplier", bold),
			text.NewCol(2, "Qty", boldRight),
			text.NewCol(2, "Unit price", boldRight),
			text.NewCol(2, "Cost", boldRight),
		)
		add(1, line.NewCol(12))
		if len(lines) == 0 {
			add(7, text.NewCol(12, "None", small))
			return
		}
		for _, item := range lines {
			add(7,
				text.NewCol(4, describe(item), small),
				text.NewCol(2, item.Supplier, small),
				text.NewCol(2, item.Quantity.String()+" "+string(item.Unit), right),
				text.NewCol(2, Money(item.UnitPrice), right),
				text.NewCol(2, Money(item.LineCost), right),
			)
		}
	}
	section("Materials", b.Materials)
	add(8, col.New(8), text.NewCol(2, "Material total", bold), text.NewCol(2, Money(b.TotalAmount), boldRight))
	section("Extras", b.Extras)

	add(10, text.NewCol(12, "Pricing options", props.Text{Size: 12, Style: fontstyle.Bold, Top: 3}))
	add(8,
		text.NewCol(2, "Option", bold),
		text.NewCol(2, "Quantity", boldRight),
		text.NewCol(2, "Margin %", boldRight),
		text.NewCol(2, "Margin", boldRight),
		text.NewCol(2, "Total cost", boldRight),
		text.NewCol(2, "Client price", boldRight),
	)
	add(1, line.NewCol(12))
	for i, option := range b.PricingOptions {
		add(7,
			text.NewCol(2, fmt.Sprintf("%d", i+1), small),
			text.NewCol(2, option.Quantity.String(), right),
			text.NewCol(2, option.MarginPercentage.String(), right),
			text.NewCol(2, Money(option.MarginAmount), right),
			text.NewCol(2, Money(option.TotalCost), right),
			text.NewCol(2, Money(option.ClientPrice), boldRight),
		)
	}

	if len(b.ImageURLs) > 0 {
		add(10, text.NewCol(12, "Images", props.Text{Size: 12, Style: fontstyle.Bold, Top: 3}))
		for _, url := range b.ImageURLs {
			add(6, text.NewCol(12, url, props.Text{Size: 8}))
		}
	}

	return rows
}

// Money formats an amount with two decimals.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func describe(item lineitemdomain.LineItem) string {
	desc := item.Description
	if item.HasMOQ && item.MOQQuantity != nil {
		desc += " (MOQ " + item.MOQQuantity.String() + ")"
	}
	if item.LeadTimeDays != nil && *item.LeadTimeDays > 0 {
		desc += fmt.Sprintf(" [%dd]", *item.LeadTimeDays)
	}
	return desc
}

func clientLine(c clientdomain.Client) string {
	parts := []string{c.Name}
	if c.Brand != "" {
		parts = append(parts, c.Brand)
	}
	if c.Email != "" {
		parts = append(parts, c.Email)
	}
	return strings.Join(parts, " / ")
}

func scheduleLine(start, end *time.Time) string {
	if start == nil {
		return "not scheduled"
	}
	if end == nil {
		return start.Format("2006-01-02")
	}
	return start.Format("2006-01-02") + " to " + end.Format("2006-01-02")
}

var Module = fx.Module("render",
	fx.Provide(New),
)
