package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	catalogsvc "librarylend/service/catalog"
	"librarylend/util/apperr"
)

type Controller struct {
	Svc catalogsvc.Service
	Log *slog.Logger
}

// POST /v1/books
func (h *Controller) Create(c echo.Context) error {
	var req map[string]any
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"code": apperr.BadReq, "message": "invalid json"})
	}
	book, err := h.Svc.AddBook(c.Request().Context(), req)
	if err != nil {
		return fail(c, h.Log, "book create", err)
	}
	return c.JSON(http.StatusCreated, book)
}

// GET /v1/books?search=...&index=...&count=...
func (h *Controller) Find(c echo.Context) error {
	req := map[string]any{}
	if v := c.QueryParam("search"); v != "" {
		req["search"] = v
	}
	for _, name := range []string{"index", "count"} {
		v := c.QueryParam(name)
		if v == "" {
			continue
		}
		// forward numeric-looking params as numbers, anything else raw so
		// the service classifies the type error
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			req[name] = f
		} else {
			req[name] = v
		}
	}
	books, err := h.Svc.FindBooks(c.Request().Context(), req)
	if err != nil {
		return fail(c, h.Log, "book find", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": books})
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
