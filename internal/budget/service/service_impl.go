package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costbook/internal/authcontext"
	"github.com/smallbiznis/costbook/internal/budget/domain"
	clientdomain "github.com/smallbiznis/costbook/internal/client/domain"
	"github.com/smallbiznis/costbook/internal/clock"
	"github.com/smallbiznis/costbook/internal/config"
	"github.com/smallbiznis/costbook/internal/inflight"
	"github.com/smallbiznis/costbook/internal/leadtime"
	lineitemdomain "github.com/smallbiznis/costbook/internal/lineitem/domain"
	"github.com/smallbiznis/costbook/internal/observability/metrics"
	"github.com/smallbiznis/costbook/internal/observability/tracing"
	pricetierdomain "github.com/smallbiznis/costbook/internal/pricetier/domain"
	"github.com/smallbiznis/costbook/internal/render"
	"github.com/smallbiznis/costbook/internal/storage"
	"github.com/smallbiznis/costbook/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const tracerName = "github.com/smallbiznis/costbook/internal/budget"

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	LineRepo      lineitemdomain.Repository
	ClientRepo    clientdomain.Repository
	Pricing       pricetierdomain.Service
	PricingConfig *config.PricingConfigHolder `optional:"true"`
	Store         storage.ObjectStore
	Guard         inflight.Guard
	Renderer      render.Renderer
	Clock         clock.Clock
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	lineRepo      lineitemdomain.Repository
	clientRepo    clientdomain.Repository
	pricing       pricetierdomain.Service
	pricingConfig *config.PricingConfigHolder
	store         storage.ObjectStore
	guard         inflight.Guard
	renderer      render.Renderer
	clock         clock.Clock
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("budget.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		lineRepo:      p.LineRepo,
		clientRepo:    p.ClientRepo,
		pricing:       p.Pricing,
		pricingConfig: p.PricingConfig,
		store:         p.Store,
		guard:         p.Guard,
		renderer:      p.Renderer,
		clock:         p.Clock,
		metrics:       p.Metrics,
	}
}

// SaveKey is the in-flight key a save holds for its duration.
func SaveKey(ownerID snowflake.ID, budgetID string) string {
	budgetID = strings.TrimSpace(budgetID)
	if budgetID == "" {
		budgetID = "new"
	}
	return "budget-save:" + ownerID.String() + ":" + budgetID
}

func (s *Service) Save(ctx context.Context, req domain.SaveRequest) (budget domain.Budget, err error) {
	mode := "create"
	if strings.TrimSpace(req.ID) != "" {
		mode = "update"
	}

	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, tracerName, "budget.save", attribute.String("budget.mode", mode))
	defer func() {
		tracing.EndSpan(span, err)
		s.metrics.RecordBudgetSave(mode, saveOutcome(err), time.Since(started))
	}()

	ownerID, ok := authcontext.UserIDFromContext(ctx)
	if !ok {
		return domain.Budget{}, domain.ErrInvalidOwner
	}

	clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
	if err != nil || clientID == 0 {
		return domain.Budget{}, domain.ErrInvalidClient
	}
	if err := validateLines(req.Materials, req.Extras); err != nil {
		return domain.Budget{}, err
	}
	if err := s.validateSchedule(req.StartDate, req.Materials, req.Extras); err != nil {
		return domain.Budget{}, err
	}
	if req.PricingOptions != nil {
		if err := pricetierdomain.Validate(req.PricingOptions); err != nil {
			return domain.Budget{}, err
		}
	}
	for _, img := range req.PendingImages {
		if err := validateImage(img); err != nil {
			return domain.Budget{}, err
		}
	}

	release, err := s.guard.Acquire(ctx, SaveKey(ownerID, req.ID))
	if err != nil {
		if errors.Is(err, inflight.ErrBusy) {
			s.log.Info("budget save refused, another save is in flight",
				zap.String("owner_id", ownerID.String()),
				zap.String("budget_id", req.ID),
			)
			return domain.Budget{}, domain.ErrSaveInProgress
		}
		return domain.Budget{}, fmt.Errorf("acquire save guard: %w", err)
	}
	defer release()

	client, err := s.clientRepo.FindByID(ctx, s.db, ownerID, clientID)
	if err != nil {
		return domain.Budget{}, fmt.Errorf("load client: %w", err)
	}
	if client == nil {
		return domain.Budget{}, domain.ErrInvalidClient
	}

	var existing *domain.Budget
	if mode == "update" {
		id, err := parseID(req.ID)
		if err != nil {
			return domain.Budget{}, err
		}
		existing, err = s.repo.FindByID(ctx, s.db, ownerID, id)
		if err != nil {
			return domain.Budget{}, fmt.Errorf("load budget: %w", err)
		}
		if existing == nil {
			return domain.Budget{}, domain.ErrNotFound
		}
	}

	status := domain.StatusDraft
	if existing != nil {
		status = existing.Status
	}
	if strings.TrimSpace(req.Status) != "" {
		next, err := domain.ParseStatus(req.Status)
		if err != nil {
			return domain.Budget{}, err
		}
		if !status.CanTransition(next) {
			return domain.Budget{}, domain.ErrInvalidTransition
		}
		status = next
	}

	draft := s.draftFor(existing)
	draft.ReplaceLines(req.Materials, req.Extras)
	if req.PricingOptions != nil {
		if err := draft.SetPricingOptions(req.PricingOptions); err != nil {
			return domain.Budget{}, err
		}
	}
	s.applyDates(draft, existing, req)

	imageURLs := []string{}
	if existing != nil && existing.ImageURLs != nil {
		imageURLs = append(imageURLs, existing.ImageURLs...)
	}
	uploaded, err := s.uploadImages(ctx, req.PendingImages)
	if err != nil {
		return domain.Budget{}, err
	}
	imageURLs = append(imageURLs, uploaded...)

	now := s.clock.Now()
	next := domain.Budget{
		OwnerID:     ownerID,
		ClientID:    client.ID,
		Status:      status,
		InternalRef: strings.TrimSpace(req.InternalRef),
		ClientRef:   strings.TrimSpace(req.ClientRef),
		Collection:  strings.TrimSpace(req.Collection),
		Size:        strings.TrimSpace(req.Size),
		ImageURLs:   datatypes.JSONSlice[string](imageURLs),
		UpdatedAt:   now,
	}
	if existing != nil {
		next.ID = existing.ID
		next.CreatedAt = existing.CreatedAt
	} else {
		next.ID = s.genID.Generate()
		next.CreatedAt = now
	}
	draft.Apply(&next)

	// The reload runs inside the transaction so an error always means nothing was stored.
	var saved domain.Budget
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if existing == nil {
			if err := s.repo.Insert(ctx, tx, &next); err != nil {
				return fmt.Errorf("insert budget: %w", err)
			}
		} else {
			if err := s.repo.Update(ctx, tx, &next); err != nil {
				return fmt.Errorf("update budget: %w", err)
			}
		}
		if err := s.syncLines(ctx, tx, &next, existing != nil, now); err != nil {
			return err
		}
		loaded, err := s.load(ctx, tx, ownerID, next.ID)
		if err != nil {
			return fmt.Errorf("reload budget: %w", err)
		}
		saved = loaded
		return nil
	})
	if err != nil {
		s.log.Error("budget save failed",
			zap.String("owner_id", ownerID.String()),
			zap.String("budget_id", next.ID.String()),
			zap.Int("uploaded_images", len(uploaded)),
			zap.Error(err),
		)
		return domain.Budget{}, err
	}

	s.log.Info("budget saved",
		zap.String("mode", mode),
		zap.String("budget_id", next.ID.String()),
		zap.Int("materials", len(next.Materials)),
		zap.Int("extras", len(next.Extras)),
		zap.String("total_amount", next.TotalAmount.String()),
	)

	return saved, nil
}

// syncLines makes the stored lines match budget.Materials and budget.Extras:
// persisted lines are updated in place, new ones inserted, missing ones deleted.
func (s *Service) syncLines(ctx context.Context, tx *gorm.DB, budget *domain.Budget, update bool, now time.Time) error {
	stored := map[snowflake.ID]struct{}{}
	if update {
		lines, err := s.lineRepo.ListByBudget(ctx, tx, budget.ID)
		if err != nil {
			return fmt.Errorf("list lines: %w", err)
		}
		for _, line := range lines {
			stored[line.ID] = struct{}{}
		}
	}

	kept := map[snowflake.ID]struct{}{}
	persist := func(lines []lineitemdomain.LineItem) error {
		for i := range lines {
			line := &lines[i]
			line.BudgetID = budget.ID
			line.Position = i
			line.UpdatedAt = now

			if line.Persisted() {
				if _, ok := stored[line.ID]; !ok {
					return lineitemdomain.ErrNotFound
				}
				if err := s.lineRepo.Update(ctx, tx, line); err != nil {
					return fmt.Errorf("update line %s: %w", line.ID, err)
				}
				kept[line.ID] = struct{}{}
				continue
			}

			line.ID = s.genID.Generate()
			line.CreatedAt = now
			if err := s.lineRepo.Insert(ctx, tx, line); err != nil {
				return fmt.Errorf("insert line: %w", err)
			}
		}
		return nil
	}
	if err := persist(budget.Materials); err != nil {
		return err
	}
	if err := persist(budget.Extras); err != nil {
		return err
	}

	var removed []snowflake.ID
	for id := range stored {
		if _, ok := kept[id]; !ok {
			removed = append(removed, id)
		}
	}
	if err := s.lineRepo.DeleteByIDs(ctx, tx, budget.ID, removed); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}
	return nil
}

func (s *Service) Preview(ctx context.Context, req domain.PreviewRequest) (domain.Preview, error) {
	if err := validateLines(req.Materials, req.Extras); err != nil {
		return domain.Preview{}, err
	}
	if err := s.validateSchedule(req.StartDate, req.Materials, req.Extras); err != nil {
		return domain.Preview{}, err
	}

	draft := domain.NewDraft(s.pricing.Defaults(), s.fallbackLeadDays())
	draft.ReplaceLines(req.Materials, req.Extras)
	if req.PricingOptions != nil {
		options, err := s.pricing.Recalculate(req.PricingOptions, draft.BaseCost())
		if err != nil {
			return domain.Preview{}, err
		}
		if err := draft.SetPricingOptions(options); err != nil {
			return domain.Preview{}, err
		}
	}
	switch {
	case req.StartToday:
		draft.StartToday(s.clock.Now())
	case req.StartDate != nil:
		draft.SetStartDate(*req.StartDate)
	}

	return domain.Preview{
		Materials:      draft.Materials,
		Extras:         draft.Extras,
		TotalAmount:    draft.TotalAmount,
		PricingOptions: draft.PricingOptions,
		LeadDays:       draft.LeadDays(),
		StartDate:      draft.StartDate,
		EndDate:        draft.EndDate,
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Budget, error) {
	ownerID, ok := authcontext.UserIDFromContext(ctx)
	if !ok {
		return domain.Budget{}, domain.ErrInvalidOwner
	}
	budgetID, err := parseID(id)
	if err != nil {
		return domain.Budget{}, err
	}
	return s.load(ctx, s.db, ownerID, budgetID)
}

func (s *Service) load(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) (domain.Budget, error) {
	budget, err := s.repo.FindByID(ctx, db, ownerID, id)
	if err != nil {
		return domain.Budget{}, err
	}
	if budget == nil {
		return domain.Budget{}, domain.ErrNotFound
	}

	lines, err := s.lineRepo.ListByBudget(ctx, db, budget.ID)
	if err != nil {
		return domain.Budget{}, err
	}
	budget.SplitLines(lines)
	return *budget, nil
}

func (s *Service) List(ctx context.Context, req domain.ListBudgetRequest) (domain.ListBudgetResponse, error) {
	ownerID, ok := authcontext.UserIDFromContext(ctx)
	if !ok {
		return domain.ListBudgetResponse{}, domain.ErrInvalidOwner
	}

	filter := domain.ListBudgetFilter{}
	if strings.TrimSpace(req.Status) != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			return domain.ListBudgetResponse{}, err
		}
		filter.Status = status
	}
	if strings.TrimSpace(req.ClientID) != "" {
		clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
		if err != nil || clientID == 0 {
			return domain.ListBudgetResponse{}, domain.ErrInvalidClient
		}
		filter.ClientID = clientID
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}

	items, err := s.repo.List(ctx, s.db, ownerID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListBudgetResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(budget *domain.Budget) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        budget.ID.String(),
			CreatedAt: budget.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	budgets := make([]domain.Budget, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		budgets = append(budgets, *item)
	}

	resp := domain.ListBudgetResponse{Budgets: budgets}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.Budget, error) {
	ownerID, ok := authcontext.UserIDFromContext(ctx)
	if !ok {
		return domain.Budget{}, domain.ErrInvalidOwner
	}
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Budget{}, err
	}
	next, err := domain.ParseStatus(req.Status)
	if err != nil {
		return domain.Budget{}, err
	}

	var updated domain.Budget
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		budget, err := s.repo.FindByID(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if budget == nil {
			return domain.ErrNotFound
		}
		if !budget.Status.CanTransition(next) {
			return domain.ErrInvalidTransition
		}
		budget.Status = next
		budget.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateStatus(ctx, tx, budget); err != nil {
			return err
		}
		updated, err = s.load(ctx, tx, ownerID, id)
		return err
	})
	if err != nil {
		return domain.Budget{}, err
	}

	s.log.Info("budget status changed",
		zap.String("budget_id", id.String()),
		zap.String("status", string(next)),
	)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	ownerID, ok := authcontext.UserIDFromContext(ctx)
	if !ok {
		return domain.ErrInvalidOwner
	}
	budgetID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		budget, err := s.repo.FindByID(ctx, tx, ownerID, budgetID)
		if err != nil {
			return err
		}
		if budget == nil {
			return domain.ErrNotFound
		}
		if err := s.lineRepo.DeleteByBudget(ctx, tx, budgetID); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, ownerID, budgetID)
	})
}

func (s *Service) Render(ctx context.Context, id string) (out []byte, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "budget.render")
	defer func() {
		tracing.EndSpan(span, err)
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
		}
		s.metrics.RecordPDFRender(outcome)
	}()

	budget, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	client, err := s.clientRepo.FindByID(ctx, s.db, budget.OwnerID, budget.ClientID)
	if err != nil {
		return nil, err
	}
	doc := render.Document{Budget: budget}
	if client != nil {
		doc.Client = *client
	}

	out, err = s.renderer.RenderBudget(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("render budget: %w", err)
	}
	return out, nil
}

func (s *Service) draftFor(existing *domain.Budget) *domain.Draft {
	if existing == nil {
		return domain.NewDraft(s.pricing.Defaults(), s.fallbackLeadDays())
	}
	return domain.DraftFromBudget(*existing, s.fallbackLeadDays())
}

// applyDates runs the start-date triggers. Without a trigger the stored dates
// are kept as they are, even when lead times changed.
func (s *Service) applyDates(draft *domain.Draft, existing *domain.Budget, req domain.SaveRequest) {
	switch {
	case req.ClearStartDate:
		draft.ClearStartDate()
	case req.StartToday:
		draft.StartToday(s.clock.Now())
	case req.StartDate != nil:
		var stored *time.Time
		if existing != nil {
			stored = existing.StartDate
		}
		if stored == nil || !leadtime.Date(*stored).Equal(leadtime.Date(*req.StartDate)) {
			draft.SetStartDate(*req.StartDate)
		}
	}
}

func (s *Service) uploadImages(ctx context.Context, images []domain.PendingImage) ([]string, error) {
	urls := make([]string, 0, len(images))
	for _, img := range images {
		url, err := s.store.Upload(ctx, storage.Object{
			Name:        img.Name,
			ContentType: img.ContentType,
			Body:        bytes.NewReader(img.Data),
		})
		if err != nil {
			s.metrics.RecordImageUpload(metrics.OutcomeFailure)
			return nil, fmt.Errorf("upload image %q: %w", img.Name, err)
		}
		s.metrics.RecordImageUpload(metrics.OutcomeSuccess)
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *Service) fallbackLeadDays() int {
	return s.pricingConfig.Get().FallbackLeadDays
}

// validateSchedule keeps projected end dates within what the store can hold.
func (s *Service) validateSchedule(start *time.Time, materials, extras []lineitemdomain.LineItem) error {
	if leadtime.SumLeadDays(materials, extras) > leadtime.MaxTotalLeadDays {
		return lineitemdomain.ErrInvalidLeadTime
	}
	if start != nil && !leadtime.InRange(*start, leadtime.TotalLeadDays(s.fallbackLeadDays(), materials, extras)) {
		return domain.ErrInvalidStartDate
	}
	return nil
}

func validateLines(materials, extras []lineitemdomain.LineItem) error {
	for _, line := range materials {
		line.Variant = lineitemdomain.VariantMaterial
		if err := line.ValidateInput(); err != nil {
			return err
		}
	}
	for _, line := range extras {
		line.Variant = lineitemdomain.VariantExtra
		if err := line.ValidateInput(); err != nil {
			return err
		}
	}
	return nil
}

func validateImage(img domain.PendingImage) error {
	if len(img.Data) == 0 || strings.TrimSpace(img.Name) == "" {
		return domain.ErrInvalidImage
	}
	if img.ContentType != "" && !strings.HasPrefix(img.ContentType, "image/") {
		return domain.ErrInvalidImage
	}
	return nil
}

func saveOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrSaveInProgress):
		return metrics.OutcomeBusy
	default:
		return metrics.OutcomeFailure
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
