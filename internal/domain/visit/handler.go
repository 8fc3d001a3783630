package visit

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
	assembler *Assembler
}

func NewHandler(svc *Service, assembler *Assembler) *Handler {
	return &Handler{svc: svc, assembler: assembler}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/visits", h.ListVisits)
	api.GET("/visits/:id", h.GetVisit)

	desk := api.Group("", auth.RequireRole(auth.RoleFrontDesk))
	desk.POST("/visits", h.CheckIn)
	desk.POST("/visits/:id/cancel", h.CancelVisit)
}

func (h *Handler) CheckIn(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req CheckInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := h.svc.CheckIn(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, h.assembler.View(c.Request().Context(), v))
}

func (h *Handler) GetVisit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.GetVisit(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.assembler.View(c.Request().Context(), v))
}

// ListVisits serves the stage queues, e.g. ?stage=doctor&status=in_progress.
func (h *Handler) ListVisits(c echo.Context) error {
	pg := pagination.FromContext(c)
	stage, err := ParseStage(c.QueryParam("stage"))
	if err != nil {
		return err
	}
	f := Filter{Stage: stage, Status: Status(c.QueryParam("status"))}
	query := url.Values{}
	if stage != "" {
		query.Set("stage", string(stage))
	}
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

	items, total, err := h.svc.ListVisits(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	resp := pagination.NewResponse(h.assembler.Views(c.Request().Context(), items), total, pg.Limit, pg.Offset)
	resp.Links = pg.Links("/api/visits", query.Encode(), total)
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) CancelVisit(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := h.svc.Cancel(c.Request().Context(), actor, id, body.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.assembler.View(c.Request().Context(), v))
}
