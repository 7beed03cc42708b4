package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc     *Service
	version string
}

// NewHandler serves the patient routes under /api/<version>.
func NewHandler(svc *Service, version string) *Handler {
	return &Handler{svc: svc, version: version}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("", h.Version)

	v := api.Group("/" + h.version)
	v.GET("/patients", h.SearchPatients)
	v.GET("/patients/:id", h.GetPatient)
	v.POST("/patients", h.CreatePatient)
	v.PUT("/patients", h.UpdatePatient)
	v.DELETE("/patients", h.DeletePatient)
}

func (h *Handler) Version(c echo.Context) error {
	return c.String(http.StatusOK, "Current Version: "+h.version)
}

func (h *Handler) SearchPatients(c echo.Context) error {
	m, err := h.svc.Search(c.Request().Context(), PredicatesFromQuery(c.QueryParams()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m.Body())
}

func (h *Handler) GetPatient(c echo.Context) error {
	m, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m.Body())
}

func (h *Handler) CreatePatient(c echo.Context) error {
	if _, err := h.svc.Create(c.Request().Context(), patchFromContext(c)); err != nil {
		return httpError(err)
	}
	return c.String(http.StatusCreated, "Patient created")
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	if _, err := h.svc.Update(c.Request().Context(), patchFromContext(c)); err != nil {
		return httpError(err)
	}
	return c.String(http.StatusOK, "Patient updated")
}

func (h *Handler) DeletePatient(c echo.Context) error {
	if _, err := h.svc.Delete(c.Request().Context(), c.QueryParam(primaryKeyField)); err != nil {
		return httpError(err)
	}
	return c.String(http.StatusOK, "Patient deleted")
}

// StoreHealth reports whether the backing document can be loaded.
func (h *Handler) StoreHealth(c echo.Context) error {
	n, err := h.svc.Count(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"patients": n,
	})
}

func patchFromContext(c echo.Context) Patch {
	return Patch(PredicatesFromQuery(c.QueryParams()))
}

// httpError maps service errors onto the status codes and plain-text
// messages clients rely on.
func httpError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, "Bad Request. "+verr.Message)
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case errors.Is(err, ErrAmbiguous):
		return echo.NewHTTPError(http.StatusMultipleChoices, "Multiple patients found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
