package labrequest

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/domain/identity"
	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/lab-requests")
	g.POST("", h.Create, auth.RequireRole(identity.RoleDoctor))
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id/assign", h.Assign, auth.RequireRole(identity.RoleDoctor))
	g.POST("/:id/claim", h.Claim, auth.RequireRole(identity.RoleLaborant))
	g.POST("/:id/confirm", h.Confirm, auth.RequireRole(identity.RoleLaborant))
	g.POST("/:id/cancel", h.Cancel, auth.RequireRole(identity.RoleDoctor))
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	lr, err := h.svc.Create(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), in)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusCreated, lr)
}

func (h *Handler) List(c echo.Context) error {
	var f Filter
	if v := c.QueryParam("status"); v != "" {
		st := Status(v)
		f.Status = &st
	}
	if v := c.QueryParam("patientId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patientId")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("assigneeId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid assigneeId")
		}
		f.AssigneeLaborantID = &id
	}
	if v := c.QueryParam("createdBy"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid createdBy")
		}
		f.CreatedByUserID = &id
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), f, pg.Limit(), pg.Offset())
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	lr, err := h.svc.Get(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, lr)
}

func (h *Handler) Assign(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var body struct {
		LaborantID int64 `json:"laborant_id"`
	}
	if err := c.Bind(&body); err != nil || body.LaborantID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "laborant_id is required")
	}
	lr, err := h.svc.Assign(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id, body.LaborantID)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, lr)
}

func (h *Handler) Claim(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	lr, err := h.svc.Claim(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, lr)
}

func (h *Handler) Confirm(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var body struct {
		MedicalFileID int64 `json:"medical_file_id"`
	}
	if err := c.Bind(&body); err != nil || body.MedicalFileID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "medical_file_id is required")
	}
	lr, err := h.svc.ConfirmWithFile(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id, body.MedicalFileID)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, lr)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	lr, err := h.svc.Cancel(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, lr)
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
