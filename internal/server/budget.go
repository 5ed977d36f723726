package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	budgetdomain "github.com/smallbiznis/costbook/internal/budget/domain"
	lineitemdomain "github.com/smallbiznis/costbook/internal/lineitem/domain"
	pricetierdomain "github.com/smallbiznis/costbook/internal/pricetier/domain"
	"github.com/smallbiznis/costbook/pkg/db/pagination"
)

// maxImageBytes bounds a single uploaded image.
const maxImageBytes = 10 << 20

type lineItemRequest struct {
	ID           string           `json:"id"`
	Description  string           `json:"description"`
	Supplier     string           `json:"supplier"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Unit         string           `json:"unit"`
	UnitPrice    decimal.Decimal  `json:"unit_price"`
	HasMOQ       bool             `json:"has_moq"`
	MOQQuantity  *decimal.Decimal `json:"moq_quantity"`
	LeadTimeDays *int             `json:"lead_time_days"`
}

type pricingOptionRequest struct {
	Quantity         decimal.Decimal `json:"quantity"`
	MarginPercentage decimal.Decimal `json:"margin_percentage"`
}

type saveBudgetRequest struct {
	ClientID       string                 `json:"client_id"`
	Status         string                 `json:"status"`
	InternalRef    string                 `json:"internal_ref"`
	ClientRef      string                 `json:"client_ref"`
	Collection     string                 `json:"collection"`
	Size           string                 `json:"size"`
	StartDate      string                 `json:"start_date"`
	StartToday     bool                   `json:"start_today"`
	ClearStartDate bool                   `json:"clear_start_date"`
	Materials      []lineItemRequest      `json:"materials"`
	Extras         []lineItemRequest      `json:"extras"`
	PricingOptions []pricingOptionRequest `json:"pricing_options"`
}

type previewBudgetRequest struct {
	StartDate      string                 `json:"start_date"`
	StartToday     bool                   `json:"start_today"`
	Materials      []lineItemRequest      `json:"materials"`
	Extras         []lineItemRequest      `json:"extras"`
	PricingOptions []pricingOptionRequest `json:"pricing_options"`
}

type updateBudgetStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) CreateBudget(c *gin.Context) {
	s.saveBudget(c, "")
}

func (s *Server) UpdateBudget(c *gin.Context) {
	s.saveBudget(c, strings.TrimSpace(c.Param("id")))
}

func (s *Server) saveBudget(c *gin.Context, id string) {
	req, images, err := bindSaveBudget(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	startDate, err := parseOptionalDate(req.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}
	materials, err := toLineItems(req.Materials, lineitemdomain.VariantMaterial)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	extras, err := toLineItems(req.Extras, lineitemdomain.VariantExtra)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.budgetSvc.Save(c.Request.Context(), budgetdomain.SaveRequest{
		ID:             id,
		ClientID:       req.ClientID,
		Status:         req.Status,
		InternalRef:    req.InternalRef,
		ClientRef:      req.ClientRef,
		Collection:     req.Collection,
		Size:           req.Size,
		StartDate:      startDate,
		StartToday:     req.StartToday,
		ClearStartDate: req.ClearStartDate,
		Materials:      materials,
		Extras:         extras,
		PricingOptions: toPricingOptions(req.PricingOptions),
		PendingImages:  images,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// bindSaveBudget reads either a JSON body or a multipart form carrying the
// JSON in a "payload" field and the files under "images".
func bindSaveBudget(c *gin.Context) (saveBudgetRequest, []budgetdomain.PendingImage, error) {
	var req saveBudgetRequest
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, nil, invalidRequestError()
		}
		return req, nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return req, nil, invalidRequestError()
	}
	payload := form.Value["payload"]
	if len(payload) == 0 {
		return req, nil, newValidationError("payload", "required", "payload is required")
	}
	if err := json.Unmarshal([]byte(payload[0]), &req); err != nil {
		return req, nil, invalidRequestError()
	}

	images := make([]budgetdomain.PendingImage, 0, len(form.File["images"]))
	for _, fh := range form.File["images"] {
		img, err := readImage(fh)
		if err != nil {
			return req, nil, err
		}
		images = append(images, img)
	}
	return req, images, nil
}

func readImage(fh *multipart.FileHeader) (budgetdomain.PendingImage, error) {
	if fh.Size > maxImageBytes {
		return budgetdomain.PendingImage{}, budgetdomain.ErrInvalidImage
	}
	f, err := fh.Open()
	if err != nil {
		return budgetdomain.PendingImage{}, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return budgetdomain.PendingImage{}, fmt.Errorf("read upload %q: %w", fh.Filename, err)
	}
	if len(data) > maxImageBytes {
		return budgetdomain.PendingImage{}, budgetdomain.ErrInvalidImage
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return budgetdomain.PendingImage{
		Name:        fh.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func toLineItems(reqs []lineItemRequest, variant lineitemdomain.Variant) ([]lineitemdomain.LineItem, error) {
	items := make([]lineitemdomain.LineItem, 0, len(reqs))
	for _, req := range reqs {
		id, err := parseOptionalSnowflakeID(req.ID)
		if err != nil {
			return nil, budgetdomain.ErrInvalidID
		}

		unit := lineitemdomain.UnitPiece
		if strings.TrimSpace(req.Unit) != "" {
			unit, err = lineitemdomain.ParseUnit(req.Unit)
			if err != nil {
				return nil, err
			}
		}

		items = append(items, lineitemdomain.LineItem{
			ID:           id,
			Variant:      variant,
			Description:  strings.TrimSpace(req.Description),
			Supplier:     strings.TrimSpace(req.Supplier),
			Quantity:     req.Quantity,
			Unit:         unit,
			UnitPrice:    req.UnitPrice,
			HasMOQ:       req.HasMOQ,
			MOQQuantity:  req.MOQQuantity,
			LeadTimeDays: req.LeadTimeDays,
		})
	}
	return items, nil
}

// toPricingOptions keeps nil for an absent list so the service applies its defaults.
func toPricingOptions(reqs []pricingOptionRequest) []pricetierdomain.PricingOption {
	if reqs == nil {
		return nil
	}
	options := make([]pricetierdomain.PricingOption, 0, len(reqs))
	for _, req := range reqs {
		options = append(options, pricetierdomain.PricingOption{
			Quantity:         req.Quantity,
			MarginPercentage: req.MarginPercentage,
		})
	}
	return options
}

func (s *Server) PreviewBudget(c *gin.Context) {
	var req previewBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startDate, err := parseOptionalDate(req.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}
	materials, err := toLineItems(req.Materials, lineitemdomain.VariantMaterial)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	extras, err := toLineItems(req.Extras, lineitemdomain.VariantExtra)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.budgetSvc.Preview(c.Request.Context(), budgetdomain.PreviewRequest{
		Materials:      materials,
		Extras:         extras,
		PricingOptions: toPricingOptions(req.PricingOptions),
		StartDate:      startDate,
		StartToday:     req.StartToday,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBudgets(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status   string `form:"status"`
		ClientID string `form:"client_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.budgetSvc.List(c.Request.Context(), budgetdomain.ListBudgetRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		Status:    strings.TrimSpace(query.Status),
		ClientID:  strings.TrimSpace(query.ClientID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBudgetByID(c *gin.Context) {
	resp, err := s.budgetSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateBudgetStatus(c *gin.Context) {
	var req updateBudgetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.budgetSvc.UpdateStatus(c.Request.Context(), budgetdomain.UpdateStatusRequest{
		ID:     strings.TrimSpace(c.Param("id")),
		Status: req.Status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteBudget(c *gin.Context) {
	if err := s.budgetSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) RenderBudget(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	out, err := s.budgetSvc.Render(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="budget-%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", out)
}
