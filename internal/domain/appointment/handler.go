package appointment

import (
	"net/http"
	"strconv"
	"time"

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
	g := api.Group("/appointments")
	g.POST("/slots", h.OpenSlots, auth.RequireRole(identity.RoleDoctor))
	g.GET("/slots", h.ListSlots)
	g.POST("/slots/:id/book", h.Book, auth.RequireRole(identity.RolePatient))
	g.POST("/slots/:id/cancel", h.Cancel)
}

func (h *Handler) OpenSlots(c echo.Context) error {
	var in OpenSlotsInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	slots, err := h.svc.OpenSlots(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), in)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusCreated, slots)
}

func (h *Handler) ListSlots(c echo.Context) error {
	var f SlotFilter
	if v := c.QueryParam("doctorId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctorId")
		}
		f.DoctorID = &id
	}
	if v := c.QueryParam("status"); v != "" {
		st := SlotStatus(v)
		f.Status = &st
	}
	if v := c.QueryParam("date"); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		}
		next := day.AddDate(0, 0, 1)
		f.From, f.To = &day, &next
	}
	if c.QueryParam("mine") == "true" {
		booked := SlotBooked
		f.Status = &booked
		// Patient scoping in the service narrows this to own bookings.
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSlots(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), f, pg.Limit(), pg.Offset())
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Book(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	slot, err := h.svc.Book(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, slot)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	slot, err := h.svc.Cancel(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, slot)
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
