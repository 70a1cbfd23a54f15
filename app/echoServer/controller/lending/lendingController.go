package lending

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	lendingsvc "librarylend/service/lending"
	"librarylend/util/apperr"
)

type Controller struct {
	Svc lendingsvc.Service
	Log *slog.Logger
}

// POST /v1/checkouts
func (h *Controller) Checkout(c echo.Context) error {
	var req map[string]any
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"code": apperr.BadReq, "message": "invalid json"})
	}
	if err := h.Svc.Checkout(c.Request().Context(), req); err != nil {
		return fail(c, h.Log, "checkout", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "checked out"})
}

// POST /v1/returns
func (h *Controller) Return(c echo.Context) error {
	var req map[string]any
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"code": apperr.BadReq, "message": "invalid json"})
	}
	if err := h.Svc.Return(c.Request().Context(), req); err != nil {
		return fail(c, h.Log, "return", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "returned"})
}

// DELETE /v1/all
func (h *Controller) Clear(c echo.Context) error {
	if err := h.Svc.Clear(c.Request().Context()); err != nil {
		return fail(c, h.Log, "clear", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "cleared"})
}

func fail(c echo.Context, log *slog.Logger, op string, err error) error {
	switch code := apperr.CodeOf(err); code {
	case apperr.Missing, apperr.BadType, apperr.BadReq:
		return c.JSON(http.StatusBadRequest, echo.Map{"code": code, "message": err.Error()})
	case apperr.DB:
		log.Error(op+" storage error", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"code": code, "message": "storage error"})
	default:
		log.Error(op+" error", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"code": apperr.DB, "message": "internal error"})
	}
}
