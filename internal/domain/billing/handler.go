package billing

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc       *Service
	generator *Generator
	assembler *Assembler
}

func NewHandler(svc *Service, generator *Generator, assembler *Assembler) *Handler {
	return &Handler{svc: svc, generator: generator, assembler: assembler}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/service-charges", h.ListCharges)
	api.GET("/service-charges/:id", h.GetCharge)

	desk := api.Group("", auth.RequireRole(auth.RoleBilling))
	desk.POST("/service-charges", h.CreateCharge)
	desk.PUT("/service-charges/:id", h.UpdateCharge)
	desk.POST("/invoices/generate", h.GenerateInvoice)
	desk.GET("/invoices", h.ListInvoices)
	desk.GET("/invoices/:id", h.GetInvoice)
	desk.GET("/invoices/:id/payments", h.ListPayments)
	desk.GET("/visits/:id/invoice", h.GetVisitInvoice)

	api.POST("/invoices/:id/cancel", h.CancelInvoice, auth.RequireRole(auth.RoleAdmin))
}

// -- Service charges --

func (h *Handler) CreateCharge(c echo.Context) error {
	var sc ServiceCharge
	if err := c.Bind(&sc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if sc.BranchID == uuid.Nil {
		if b, err := uuid.Parse(auth.BranchIDFromContext(c.Request().Context())); err == nil {
			sc.BranchID = b
		}
	}
	sc.Active = true
	if err := h.svc.CreateCharge(c.Request().Context(), &sc); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sc)
}

func (h *Handler) GetCharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sc, err := h.svc.GetCharge(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *Handler) UpdateCharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	existing, err := h.svc.GetCharge(c.Request().Context(), id)
	if err != nil {
		return err
	}
	sc := *existing
	if err := c.Bind(&sc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sc.ID = existing.ID
	sc.BranchID = existing.BranchID
	if err := h.svc.UpdateCharge(c.Request().Context(), &sc); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sc)
}

// ListCharges serves the branch price list, e.g. ?category=laboratory&active=true.
func (h *Handler) ListCharges(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ChargeFilter{Category: Category(c.QueryParam("category")), ActiveOnly: c.QueryParam("active") == "true"}
	query := url.Values{}
	raw := c.QueryParam("branchId")
	if raw == "" {
		raw = auth.BranchIDFromContext(c.Request().Context())
	} else {
		query.Set("branchId", raw)
	}
	if raw != "" {
		b, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid branchId")
		}
		f.BranchID = &b
	}
	if f.Category != "" {
		query.Set("category", string(f.Category))
	}
	if f.ActiveOnly {
		query.Set("active", "true")
	}

	items, total, err := h.svc.ListCharges(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*ServiceCharge{}
	}
	resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset)
	resp.Links = pg.Links("/api/service-charges", query.Encode(), total)
	return c.JSON(http.StatusOK, resp)
}

// -- Invoices --

func (h *Handler) GenerateInvoice(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var body struct {
		VisitID uuid.UUID         `json:"visitId"`
		Pricing *PricingOverrides `json:"pricing,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.VisitID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "visitId is required")
	}
	res, err := h.generator.Generate(c.Request().Context(), body.VisitID, actor.StaffID, body.Pricing)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, h.assembler.View(c.Request().Context(), res.Invoice))
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.assembler.View(c.Request().Context(), inv))
}

func (h *Handler) GetVisitInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	inv, err := h.svc.GetInvoiceByVisit(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.assembler.View(c.Request().Context(), inv))
}

func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := InvoiceFilter{Status: InvoiceStatus(c.QueryParam("status"))}
	query := url.Values{}
	if f.Status != "" {
		query.Set("status", string(f.Status))
	}
	for param, dst := range map[string]**uuid.UUID{"branchId": &f.BranchID, "patientId": &f.PatientID} {
		if v := c.QueryParam(param); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
			}
			*dst = &id
			query.Set(param, v)
		}
	}

	items, total, err := h.svc.ListInvoices(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	resp := pagination.NewResponse(h.assembler.Views(c.Request().Context(), items), total, pg.Limit, pg.Offset)
	resp.Links = pg.Links("/api/invoices", query.Encode(), total)
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListPayments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListPayments(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Payment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CancelInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.CancelInvoice(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.assembler.View(c.Request().Context(), inv))
}
