package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/costbook/internal/authcontext"
	"github.com/smallbiznis/costbook/internal/budget/domain"
	budgetrepository "github.com/smallbiznis/costbook/internal/budget/repository"
	clientdomain "github.com/smallbiznis/costbook/internal/client/domain"
	clientrepository "github.com/smallbiznis/costbook/internal/client/repository"
	"github.com/smallbiznis/costbook/internal/clock"
	"github.com/smallbiznis/costbook/internal/dbtest"
	"github.com/smallbiznis/costbook/internal/inflight"
	lineitemdomain "github.com/smallbiznis/costbook/internal/lineitem/domain"
	lineitemrepository "github.com/smallbiznis/costbook/internal/lineitem/repository"
	"github.com/smallbiznis/costbook/internal/observability/metrics"
	pricetierdomain "github.com/smallbiznis/costbook/internal/pricetier/domain"
	pricetierservice "github.com/smallbiznis/costbook/internal/pricetier/service"
	"github.com/smallbiznis/costbook/internal/render"
	"github.com/smallbiznis/costbook/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var monday = time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc      domain.Service
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	guard    *inflight.MemoryGuard
	ctx      context.Context
	ownerID  snowflake.ID
	clientID snowflake.ID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	return setupWith(t, nil)
}

// setupWith lets a test swap collaborators before the service is built.
func setupWith(t *testing.T, customize func(p *Params)) *fixture {
	t.Helper()

	db := dbtest.Open(t)
	node := dbtest.Node(t)
	clk := clock.NewFakeClock(monday)
	guard := inflight.NewMemoryGuard()

	store, err := storage.NewLocalStore(t.TempDir(), "/files", clk, zap.NewNop())
	require.NoError(t, err)
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	clientRepo := clientrepository.Provide()
	ownerID := node.Generate()
	client := clientdomain.Client{ID: node.Generate(), OwnerID: ownerID, Name: "Acme", CreatedAt: monday, UpdatedAt: monday}
	require.NoError(t, clientRepo.Insert(context.Background(), db, &client))

	params := Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Repo:       budgetrepository.Provide(),
		LineRepo:   lineitemrepository.Provide(),
		ClientRepo: clientRepo,
		Pricing:    pricetierservice.New(pricetierservice.Params{Log: zap.NewNop()}),
		Store:      store,
		Guard:      guard,
		Renderer:   render.NewPDFRenderer(0),
		Clock:      clk,
		Metrics:    m,
	}
	if customize != nil {
		customize(&params)
	}
	svc := New(params)

	return &fixture{
		svc:      svc,
		db:       db,
		node:     node,
		clock:    clk,
		guard:    guard,
		ctx:      authcontext.WithUserID(context.Background(), int64(ownerID)),
		ownerID:  ownerID,
		clientID: client.ID,
	}
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func days(n int) *int { return &n }

func material(desc string, qty, price string, lead *int) lineitemdomain.LineItem {
	return lineitemdomain.LineItem{
		Description:  desc,
		Unit:         lineitemdomain.UnitMeter,
		Quantity:     dec(qty),
		UnitPrice:    dec(price),
		LeadTimeDays: lead,
	}
}

func extra(desc string, qty, price string, lead *int) lineitemdomain.LineItem {
	line := material(desc, qty, price, lead)
	line.Unit = lineitemdomain.UnitPiece
	return line
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func ymd(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func (f *fixture) scenario() domain.SaveRequest {
	start := monday
	return domain.SaveRequest{
		ClientID:    f.clientID.String(),
		InternalRef: "INT-1",
		StartDate:   &start,
		Materials:   []lineitemdomain.LineItem{material("Cotton twill", "2", "50", days(10))},
		Extras:      []lineitemdomain.LineItem{extra("Express courier", "1", "999", days(0))},
	}
}

func TestSaveCreatesBudgetFromScenario(t *testing.T) {
	f := setup(t)

	budget, err := f.svc.Save(f.ctx, f.scenario())
	require.NoError(t, err)

	assert.NotZero(t, budget.ID)
	assert.Equal(t, f.ownerID, budget.OwnerID)
	assert.Equal(t, domain.StatusDraft, budget.Status)
	assertDec(t, "100", budget.TotalAmount)

	require.Len(t, budget.PricingOptions, pricetierdomain.TierCount)
	for i, want := range []string{"110", "115", "120"} {
		assertDec(t, want, budget.PricingOptions[i].ClientPrice)
	}
	assert.Equal(t, "2025-03-03", ymd(budget.StartDate))
	assert.Equal(t, "2025-03-17", ymd(budget.EndDate))

	require.Len(t, budget.Materials, 1)
	require.Len(t, budget.Extras, 1)
	assert.Equal(t, budget.ID, budget.Materials[0].BudgetID)
	assert.NotZero(t, budget.Materials[0].ID)
	assertDec(t, "100", budget.Materials[0].LineCost)
	assertDec(t, "999", budget.Extras[0].LineCost)

	stored, err := f.svc.Get(f.ctx, budget.ID.String())
	require.NoError(t, err)
	assertDec(t, "100", stored.TotalAmount)
	assert.Equal(t, budget.Materials[0].ID, stored.Materials[0].ID)
}

func TestSaveWithoutLeadTimesUsesFallback(t *testing.T) {
	f := setup(t)
	req := f.scenario()
	req.Materials[0].LeadTimeDays = nil
	req.Extras = nil

	budget, err := f.svc.Save(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "2025-04-30", ymd(budget.EndDate))
}

func TestSaveUpdateSyncsLines(t *testing.T) {
	f := setup(t)
	req := f.scenario()
	req.Materials = append(req.Materials, material("Buttons", "100", "0.5", nil))

	created, err := f.svc.Save(f.ctx, req)
	require.NoError(t, err)
	require.Len(t, created.Materials, 2)
	assertDec(t, "150", created.TotalAmount)

	kept := created.Materials[0]
	kept.Quantity = dec("3")
	update := f.scenario()
	update.ID = created.ID.String()
	update.Materials = []lineitemdomain.LineItem{kept, material("Zipper", "4", "2.5", nil)}
	update.Extras = nil

	updated, err := f.svc.Save(f.ctx, update)
	require.NoError(t, err)

	require.Len(t, updated.Materials, 2)
	assert.Empty(t, updated.Extras)
	assert.Equal(t, kept.ID, updated.Materials[0].ID)
	assert.Equal(t, "Zipper", updated.Materials[1].Description)
	assertDec(t, "160", updated.TotalAmount)
	assertDec(t, "176", updated.PricingOptions[0].ClientPrice)

	var count int64
	require.NoError(t, f.db.Model(&lineitemdomain.LineItem{}).Where("budget_id = ?", created.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestSaveRejectsLineFromAnotherBudget(t *testing.T) {
	f := setup(t)
	first, err := f.svc.Save(f.ctx, f.scenario())
	require.NoError(t, err)
	second, err := f.svc.Save(f.ctx, f.scenario())
	require.NoError(t, err)

	update := f.scenario()
	update.ID = second.ID.String()
	update.Materials = []lineitemdomain.LineItem{first.Materials[0]}

	_, err = f.svc.Save(f.ctx, update)
	assert.ErrorIs(t, err, lineitemdomain.ErrNotFound)

	stored, err := f.svc.Get(f.ctx, second.ID.String())
	require.NoError(t, err)
	require.Len(t, stored.Materials, 1)
	assert.Equal(t, second.Materials[0].ID, stored.Materials[0].ID)
}

func TestSaveKeepsEndDateUntilStartTrigger(t *testing.T) {
	f := setup(t)
	created, err := f.svc.Save(f.ctx, f.scenario())
	require.NoError(t, err)
	require.Equal(t, "2025-03-17", ymd(created.EndDate))

	update := f.scenario()
	update.ID = created.ID.String()
	update.Materials = []lineitemdomain.LineItem{created.Materials[0]}
	update.Materials[0].LeadTimeDays = days(20)

	stale, err := f.svc.Save(f.ctx, update)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-17", ymd(stale.EndDate))

	f.clock.Set(time.Date(2025, 3, 7, 15, 0, 0, 0, time.UTC))
	update.StartDate = nil
	update.StartToday = true
	update.Materials = stale.Materials

	restarted, err := f.svc.Save(f.ctx, update)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-07", ymd(restarted.StartDate))
	assert.Equal(t, "2025-04-04", ymd(restarted.EndDate))
}

func TestSaveClearStartDate(t *testing.T) {
	f := setup(t)
	created, err := f.svc.Save(f.ctx, f.scenario())
	require.NoError(t, err)

	update := f.scenario()
	update.ID = created.ID.String()
	update.Materials = created.Materials
	update.Extras = created.Extras
	update.StartDate = nil
	update.ClearStartDate = true

	cleared, err := f.svc.Save(f.ctx, update)
	require.NoError(t, err)
	assert.Nil(t, cleared.StartDate)
	assert.Nil(t, cleared.EndDate)
}

func TestSaveRefusedWhileAnotherSaveIsInFlight(t *testing.T) {
	f := setup(t)

	release, err := f.guard.Acquire(context.Background(), SaveKey(f.ownerID, ""))
	require.NoError(t, err)

	_, err = f.svc.Save(f.ctx, f.scenario())
	assert.ErrorIs(t, err, domain.ErrSaveInProgress)

	release()
	_, err = f.svc.Save(f.ctx, f.scenario())
	assert.NoError(t, err)
}

func TestSaveAppendsUploadedImages(t *testing.T) {
	f := setup(t)
	req := f.scenario()
	req.PendingImages = []domain.PendingImage{{Name: "Front View.png", ContentType: "image/png", Data: []byte("png-1")}}

	created, err := f.svc.Save(f.ctx, req)
	require.NoError(t, err)
	require.Len(t, created.ImageURLs, 1)
	assert.True(t, strings.HasPrefix(created.ImageURLs[0], "/files/2025/03/"))
	assert.True(t, strings.HasSuffix(created.ImageURLs[0], "-front-view.png"))

	update := f.scenario()
	update.ID = created.ID.String()
	update.Materials = created.Materials
	update.PendingImages = []domain.PendingImage{{Name: "back.jpg", ContentType: "image/jpeg", Data: []byte("jpg")}}

	updated, err := f.svc.Save(f.ctx, update)
	require.NoError(t, err)
	require.Len(t, updated.ImageURLs, 2)
	assert.Equal(t, created.ImageURLs[0], updated.ImageURLs[0])
}

func TestSaveRejectsInvalidInput(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Save(context.Background(), f.scenario())
	assert.ErrorIs(t, err, domain.ErrInvalidOwner)

	req := f.scenario()
	req.ClientID = f.node.Generate().String()
	_, err = f.svc.Save(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidClient)

	req = f.scenario()
	req.Materials[0].Quantity = dec("-1")
	_, err = f.svc.Save(f.ctx, req)
	assert.ErrorIs(t, err, lineitemdomain.ErrInvalidQuantity)

	req = f.scenario()
	req.PricingOptions = pricetierdomain.DefaultOptions()[:2]
	_, err = f.svc.Save(f.ctx, req)
	assert.ErrorIs(t, err, pricetierdomain.ErrInvalidTierCount)

	req = f.scenario()
	req.PendingImages = []domain.PendingImage{{Name: "notes.txt", ContentType: "text/plain", Data: []byte("x")}}
	_, err = f.svc.Save(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidImage)

	req = f.scenario()
	req.ID = f.node.Generate().String()
	_, err = f.svc.Save(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveKeepsCustomMargins(t *testing.T) {
	f := setup(t)
	req := f.scenario()
	req.PricingOptions = pricetierdomain.NewOptions([]float64{5, 25, 50})
	req.PricingOptions[1].Quantity = dec("500")

	budget, err := f.svc.Save(f.ctx, req)
	require.NoError(t, err)
	assertDec(t, "105", budget.PricingOptions[0].ClientPrice)
	assertDec(t, "125", budget.PricingOptions[1].ClientPrice)
	assertDec(t, "500", budget.PricingOptions[1].Quantity)
	assertDec(t, "150", budget.PricingOptions[2].ClientPrice)
}

func TestUpdateStatusTransitions(t *testing.T) {
	f := setup(t)
	budget, err := f.svc.Save(f.ctx, f.scenario())
	require.NoError(t, err)
	id := budget.ID.String()

	_, err = f.svc.UpdateStatus(f.ctx, domain.UpdateStatusRequest{ID: id, Status: "approved"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	sent, err := f.svc.UpdateStatus(f.ctx, domain.UpdateStatusRequest{ID: id, Status: "sent"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, sent.Status)

	approved, err := f.svc.UpdateStatus(f.ctx, domain.UpdateStatusRequest{ID: id, Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	require.Len(t, approved.Materials, 1)

	_, err = f.svc.UpdateStatus(f.ctx, domain.UpdateStatusRequest{ID: id, Status: "archived"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestListFiltersAndPages(t *testing.T) {
	f := setup(t)
	var ids []snowflake.ID
	for i := 0; i < 3; i++ {
		f.clock.Set(monday.Add(time.Duration(i) * time.Hour))
		budget, err := f.svc.Save(f.ctx, f.scenario())
		require.NoError(t, err)
		ids = append(ids, budget.ID)
	}
	_, err := f.svc.UpdateStatus(f.ctx, domain.UpdateStatusRequest{ID: ids[0].String(), Status: "sent"})
	require.NoError(t, err)

	page, err := f.svc.List(f.ctx, domain.ListBudgetRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Budgets, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[2], page.Budgets[0].ID)
	assert.Equal(t, ids[1], page.Budgets[1].ID)

	next, err := f.svc.List(f.ctx, domain.ListBudgetRequest{PageSize: 2, PageToken: page.NextPageToken})
	require.NoError(t, err)
	require.Len(t, next.Budgets, 1)
	assert.Equal(t, ids[0], next.Budgets[0].ID)
	assert.False(t, next.HasMore)

	sent, err := f.svc.List(f.ctx, domain.ListBudgetRequest{Status: "sent"})
	require.NoError(t, err)
	require.Len(t, sent.Budgets, 1)
	assert.Equal(t, ids[0], sent.Budgets[0].ID)

	other := authcontext.WithUserID(context.Background(), int64(f.node.Generate()))
	empty, err := f.svc.List(other, domain.ListBudgetRequest{})
	require.NoError(t, err)
	assert.Empty(t, empty.Budgets)
}

func TestDeleteRemovesBudgetAndLines(t *testing.T) {
	f := setup(t)
	budget, err := f.svc.Save(f.ctx, f.scenario())
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(f.ctx, budget.ID.String()))

	_, err = f.svc.Get(f.ctx, budget.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var count int64
	require.NoError(t, f.db.Model(&lineitemdomain.LineItem{}).Where("budget_id = ?", budget.ID).Count(&count).Error)
	assert.Zero(t, count)

	assert.ErrorIs(t, f.svc.Delete(f.ctx, budget.ID.String()), domain.ErrNotFound)
}

func TestRenderProducesPDF(t *testing.T) {
	f := setup(t)
	budget, err := f.svc.Save(f.ctx, f.scenario())
	require.NoError(t, err)

	out, err := f.svc.Render(f.ctx, budget.ID.String())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = f.svc.Render(f.ctx, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestPreviewComputesWithoutStoring(t *testing.T) {
	f := setup(t)
	start := monday
	preview, err := f.svc.Preview(f.ctx, domain.PreviewRequest{
		Materials: []lineitemdomain.LineItem{material("Cotton twill", "2", "50", days(10))},
		Extras:    []lineitemdomain.LineItem{extra("Express courier", "1", "999", nil)},
		StartDate: &start,
	})
	require.NoError(t, err)

	assertDec(t, "100", preview.TotalAmount)
	assertDec(t, "120", preview.PricingOptions[2].ClientPrice)
	assert.Equal(t, 10, preview.LeadDays)
	assert.Equal(t, "2025-03-17", ymd(preview.EndDate))

	var count int64
	require.NoError(t, f.db.Model(&domain.Budget{}).Count(&count).Error)
	assert.Zero(t, count)
}

type failingStore struct{}

func (failingStore) Upload(context.Context, storage.Object) (string, error) {
	return "", errors.New("disk full")
}

type failingLineRepo struct {
	lineitemdomain.Repository
}

func (failingLineRepo) Insert(context.Context, *gorm.DB, *lineitemdomain.LineItem) error {
	return errors.New("line insert failed")
}

type failingReloadRepo struct {
	domain.Repository
}

func (failingReloadRepo) FindByID(context.Context, *gorm.DB, snowflake.ID, snowflake.ID) (*domain.Budget, error) {
	return nil, errors.New("read failed")
}

func (f *fixture) countRows(t *testing.T) (budgets, lines int64) {
	t.Helper()
	require.NoError(t, f.db.Model(&domain.Budget{}).Count(&budgets).Error)
	require.NoError(t, f.db.Model(&lineitemdomain.LineItem{}).Count(&lines).Error)
	return budgets, lines
}

func TestSaveUploadFailureStoresNothing(t *testing.T) {
	f := setupWith(t, func(p *Params) { p.Store = failingStore{} })
	req := f.scenario()
	req.PendingImages = []domain.PendingImage{{Name: "front.png", ContentType: "image/png", Data: []byte("png")}}

	_, err := f.svc.Save(f.ctx, req)
	require.Error(t, err)

	budgets, lines := f.countRows(t)
	assert.Zero(t, budgets)
	assert.Zero(t, lines)
}

func TestSaveLineInsertFailureRollsBackBudget(t *testing.T) {
	f := setupWith(t, func(p *Params) { p.LineRepo = failingLineRepo{Repository: p.LineRepo} })

	_, err := f.svc.Save(f.ctx, f.scenario())
	require.Error(t, err)

	budgets, lines := f.countRows(t)
	assert.Zero(t, budgets)
	assert.Zero(t, lines)
}

func TestSaveReloadFailureRollsBackBudget(t *testing.T) {
	f := setupWith(t, func(p *Params) { p.Repo = failingReloadRepo{Repository: p.Repo} })

	_, err := f.svc.Save(f.ctx, f.scenario())
	require.Error(t, err)

	budgets, lines := f.countRows(t)
	assert.Zero(t, budgets)
	assert.Zero(t, lines)
}

func TestSaveRejectsUnstorableSchedules(t *testing.T) {
	f := setup(t)

	req := f.scenario()
	req.Materials[0].LeadTimeDays = days(3_000_000)
	_, err := f.svc.Save(f.ctx, req)
	assert.ErrorIs(t, err, lineitemdomain.ErrInvalidLeadTime)

	req = f.scenario()
	req.Materials = nil
	for i := 0; i < 11; i++ {
		req.Materials = append(req.Materials, material("Lining", "1", "1", days(lineitemdomain.MaxLeadTimeDays)))
	}
	_, err = f.svc.Save(f.ctx, req)
	assert.ErrorIs(t, err, lineitemdomain.ErrInvalidLeadTime)

	req = f.scenario()
	late := time.Date(9999, 12, 1, 0, 0, 0, 0, time.UTC)
	req.StartDate = &late
	_, err = f.svc.Save(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidStartDate)

	_, err = f.svc.Preview(f.ctx, domain.PreviewRequest{Materials: req.Materials, StartDate: &late})
	assert.ErrorIs(t, err, domain.ErrInvalidStartDate)

	budgets, lines := f.countRows(t)
	assert.Zero(t, budgets)
	assert.Zero(t, lines)

	_, err = f.svc.List(f.ctx, domain.ListBudgetRequest{})
	require.NoError(t, err)
}

func TestSaveKeepsLongestAllowedLeadTime(t *testing.T) {
	f := setup(t)
	req := f.scenario()
	req.Materials[0].LeadTimeDays = days(lineitemdomain.MaxLeadTimeDays)

	budget, err := f.svc.Save(f.ctx, req)
	require.NoError(t, err)
	require.NotNil(t, budget.EndDate)

	list, err := f.svc.List(f.ctx, domain.ListBudgetRequest{})
	require.NoError(t, err)
	require.Len(t, list.Budgets, 1)
	assert.Equal(t, ymd(budget.EndDate), ymd(list.Budgets[0].EndDate))
}

func TestSaveStoresAmountsWithoutRounding(t *testing.T) {
	f := setup(t)
	req := f.scenario()
	req.Materials = []lineitemdomain.LineItem{material("Thread", "3", "2.12345", nil)}

	saved, err := f.svc.Save(f.ctx, req)
	require.NoError(t, err)

	got, err := f.svc.Get(f.ctx, saved.ID.String())
	require.NoError(t, err)
	assertDec(t, "6.37035", got.Materials[0].LineCost)
	assertDec(t, "6.37035", got.TotalAmount)
}
