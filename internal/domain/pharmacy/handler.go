package pharmacy

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/visits/:id/prescriptions", h.ListByVisit)
	api.POST("/visits/:id/prescriptions", h.Prescribe, auth.RequireRole(auth.RoleDoctor))

	rx := api.Group("", auth.RequireRole(auth.RolePharmacist))
	rx.GET("/pharmacy/stock", h.ListStock)
	rx.PUT("/pharmacy/stock", h.UpsertStock)
	rx.POST("/prescriptions/:id/dispense", h.Dispense)
}

func (h *Handler) UpsertStock(c echo.Context) error {
	var item StockItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if item.BranchID == uuid.Nil {
		if b, err := uuid.Parse(auth.BranchIDFromContext(c.Request().Context())); err == nil {
			item.BranchID = b
		}
	}
	if err := h.svc.UpsertStock(c.Request().Context(), &item); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ListStock(c echo.Context) error {
	raw := c.QueryParam("branchId")
	if raw == "" {
		raw = auth.BranchIDFromContext(c.Request().Context())
	}
	branchID, err := uuid.Parse(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "branchId is required")
	}
	items, err := h.svc.ListStock(c.Request().Context(), branchID)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*StockItem{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Prescribe(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	var body struct {
		Items []PrescriptionItem `json:"items"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Prescribe(c.Request().Context(), actor, visitID, body.Items)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListByVisit(c echo.Context) error {
	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	items, err := h.svc.ListByVisit(c.Request().Context(), visitID)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Prescription{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Dispense(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Dispense(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
