package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/M-Affan01/HealthMonitor/internal/domain/alert"
	"github.com/M-Affan01/HealthMonitor/internal/domain/patient"
	"github.com/M-Affan01/HealthMonitor/internal/domain/threshold"
	"github.com/M-Affan01/HealthMonitor/internal/domain/vitals"
	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
	"github.com/M-Affan01/HealthMonitor/internal/platform/auth"
	"github.com/M-Affan01/HealthMonitor/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Clinical endpoints – doctor (admin always passes)
	clinical := api.Group("", auth.RequireRole(auth.RoleDoctor))
	clinical.POST("/vitals", h.IngestVitals)
	clinical.GET("/vitals", h.ListVitals)
	clinical.GET("/alerts", h.ListAlerts)
	clinical.PUT("/alerts/:id", h.UpdateAlert)
	clinical.GET("/patients", h.ListPatients)
	clinical.GET("/patients/:id", h.GetPatient)
	clinical.DELETE("/patients/:id", h.DeactivatePatient)
	clinical.POST("/patients/:id/risk", h.RecomputeRisk)
	clinical.GET("/thresholds", h.GetThresholds)
	clinical.GET("/analytics", h.Analytics)

	// Administration
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/patients", h.CreatePatient)
	admin.PUT("/thresholds", h.UpdateThresholds)
}

func actor(c echo.Context) auth.Actor {
	return auth.ActorFromContext(c.Request().Context())
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func queryDays(c echo.Context) (int, error) {
	raw := c.QueryParam("days")
	if raw == "" {
		return DefaultListDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 || days > 365 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "days must be between 1 and 365")
	}
	return days, nil
}

// readingRequest is the caller-supplied part of a reading. The id and
// recordedBy are always assigned server side.
type readingRequest struct {
	PatientID              uuid.UUID `json:"patientId"`
	HeartRate              *float64  `json:"heartRate"`
	BloodPressureSystolic  *float64  `json:"bloodPressureSystolic"`
	BloodPressureDiastolic *float64  `json:"bloodPressureDiastolic"`
	Temperature            *float64  `json:"temperature"`
	OxygenSaturation       *float64  `json:"oxygenSaturation"`
	RespiratoryRate        *float64  `json:"respiratoryRate"`
	BloodGlucose           *float64  `json:"bloodGlucose"`
	Weight                 *float64  `json:"weight"`
	Height                 *float64  `json:"height"`
	Notes                  *string   `json:"notes"`
	RecordedAt             time.Time `json:"recordedAt"`
}

func (r readingRequest) measurement() *vitals.Measurement {
	return &vitals.Measurement{
		PatientID:              r.PatientID,
		HeartRate:              r.HeartRate,
		BloodPressureSystolic:  r.BloodPressureSystolic,
		BloodPressureDiastolic: r.BloodPressureDiastolic,
		Temperature:            r.Temperature,
		OxygenSaturation:       r.OxygenSaturation,
		RespiratoryRate:        r.RespiratoryRate,
		BloodGlucose:           r.BloodGlucose,
		Weight:                 r.Weight,
		Height:                 r.Height,
		Notes:                  r.Notes,
		RecordedAt:             r.RecordedAt,
	}
}

func (h *Handler) IngestVitals(c echo.Context) error {
	var body readingRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.Ingest(c.Request().Context(), actor(c), body.measurement())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListVitals(c echo.Context) error {
	pid, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	days, err := queryDays(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListVitals(c.Request().Context(), actor(c), pid, days)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*vitals.Measurement{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListAlerts(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := alert.ListFilter{Limit: pg.Limit, Offset: pg.Offset}

	if raw := c.QueryParam("patient_id"); raw != "" {
		pid, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &pid
	}
	if raw := c.QueryParam("status"); raw != "" {
		st, err := alert.ParseStatus(raw)
		if err != nil {
			return apperr.ToHTTP(err)
		}
		f.Status = &st
	}
	if raw := c.QueryParam("severity"); raw != "" {
		sev, err := alert.ParseSeverity(raw)
		if err != nil {
			return apperr.ToHTTP(err)
		}
		f.Severity = &sev
	}
	days, err := queryDays(c)
	if err != nil {
		return err
	}

	items, total, err := h.svc.ListAlerts(c.Request().Context(), actor(c), f, days)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*alert.Alert{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateAlert(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var body transitionRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	to, err := alert.ParseStatus(body.Status)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	a, err := h.svc.TransitionAlert(c.Request().Context(), actor(c), id, to)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), actor(c), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), actor(c), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*patient.Patient{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) DeactivatePatient(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeactivatePatient(c.Request().Context(), actor(c), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p patient.Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p.IsActive = true
	if err := h.svc.CreatePatient(c.Request().Context(), actor(c), &p); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) RecomputeRisk(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	snap, err := h.svc.RecomputeRisk(c.Request().Context(), actor(c), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) GetThresholds(c echo.Context) error {
	cfg, err := h.svc.GetThresholds(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) UpdateThresholds(c echo.Context) error {
	var patch threshold.Patch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cfg, err := h.svc.UpdateThresholds(c.Request().Context(), actor(c), patch)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) Analytics(c echo.Context) error {
	sum, err := h.svc.Analytics(c.Request().Context(), actor(c))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, sum)
}
