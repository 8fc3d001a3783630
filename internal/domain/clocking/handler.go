package clocking

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/billing"
	"github.com/clinic/clinic/internal/domain/visit"
	"github.com/clinic/clinic/internal/platform/auth"
)

type Handler struct {
	svc      *Service
	visits   *visit.Assembler
	invoices *billing.Assembler
}

func NewHandler(svc *Service, visits *visit.Assembler, invoices *billing.Assembler) *Handler {
	return &Handler{svc: svc, visits: visits, invoices: invoices}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/clocking")
	g.POST("/clock-in", h.ClockIn)
	g.POST("/handoff", h.Handoff)
	g.POST("/billing-clock-in", h.BillingClockIn)
}

type handoffResponse struct {
	Message     string               `json:"message"`
	Visit       *visit.View          `json:"visit"`
	Invoice     *billing.InvoiceView `json:"invoice,omitempty"`
	SideEffects []SideEffect         `json:"sideEffects"`
}

type billingResponse struct {
	Message     string               `json:"message"`
	Visit       *visit.View          `json:"visit"`
	Payment     *billing.Payment     `json:"payment"`
	Invoice     *billing.InvoiceView `json:"invoice"`
	SideEffects []SideEffect         `json:"sideEffects"`
}

func (h *Handler) ClockIn(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var body struct {
		VisitID uuid.UUID `json:"visitId"`
		Notes   string    `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := h.svc.ClockIn(c.Request().Context(), actor, body.VisitID, body.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Clocked in at " + string(v.CurrentStage),
		"visit":   h.visits.View(c.Request().Context(), v),
	})
}

func (h *Handler) Handoff(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req HandoffRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.Handoff(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	resp := handoffResponse{
		Message:     Message(res.Transition),
		Visit:       h.visits.View(ctx, res.Visit),
		SideEffects: sideEffects(res.SideEffects),
	}
	if res.Invoice != nil {
		resp.Invoice = h.invoices.View(ctx, res.Invoice)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) BillingClockIn(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req BillingClockInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.BillingClockIn(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, billingResponse{
		Message:     "Payment recorded, visit returned to front desk",
		Visit:       h.visits.View(ctx, res.Visit),
		Payment:     res.Payment,
		Invoice:     h.invoices.View(ctx, res.Invoice),
		SideEffects: sideEffects(res.SideEffects),
	})
}

func sideEffects(s []SideEffect) []SideEffect {
	if s == nil {
		return []SideEffect{}
	}
	return s
}
