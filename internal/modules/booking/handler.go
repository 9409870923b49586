package booking

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinicbook/internal/logging"
	"clinicbook/internal/pkg/response"
)

type Handler struct {
	resolver SlotResolver
	writer   ReservationCreator
	sessions *SessionRegistry
	clinic   ClinicInfo
	log      *zap.Logger
}

func NewHandler(resolver SlotResolver, writer ReservationCreator, sessions *SessionRegistry, clinic ClinicInfo, log *zap.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		writer:   writer,
		sessions: sessions,
		clinic:   clinic,
		log:      logging.OrNop(log),
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/clinic", h.GetClinic)
	rg.GET("/slots", h.GetSlots)
	rg.POST("/reservations", h.CreateReservation)

	sessions := rg.Group("/booking/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("/:id", h.GetSession)
		sessions.PUT("/:id/date", h.SelectDate)
		sessions.PUT("/:id/slot", h.SelectSlot)
		sessions.PUT("/:id/details", h.SetDetails)
		sessions.POST("/:id/submit", h.Submit)
		sessions.DELETE("/:id", h.DeleteSession)
	}
}

func (h *Handler) GetClinic(c *gin.Context) {
	response.Success(c, http.StatusOK, h.clinic)
}

func (h *Handler) GetSlots(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "date query parameter is required")
		return
	}
	a, err := h.resolver.Resolve(c.Request.Context(), date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, a)
}

func (h *Handler) CreateReservation(c *gin.Context) {
	var req CreateReservationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	r, err := h.writer.CreateReservation(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"reservation": r})
}

func (h *Handler) CreateSession(c *gin.Context) {
	s := h.sessions.Create()
	response.Success(c, http.StatusCreated, gin.H{"session": s.Snapshot()})
}

func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": s.Snapshot()})
}

func (h *Handler) SelectDate(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req SelectDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	snap, err := s.SelectDate(c.Request.Context(), req.Date)
	h.respondSession(c, snap, err)
}

func (h *Handler) SelectSlot(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req SelectSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	snap, err := s.SelectSlot(req.Time)
	h.respondSession(c, snap, err)
}

func (h *Handler) SetDetails(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req SetDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	snap, err := s.SetDetails(req.details())
	h.respondSession(c, snap, err)
}

func (h *Handler) Submit(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.Submit(c.Request.Context())
	h.respondSession(c, snap, err)
}

func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Remove(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) session(c *gin.Context) (*Session, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) respondSession(c *gin.Context, snap Snapshot, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid reservation details", verr.Fields)
	case errors.Is(err, ErrSlotAlreadyBooked):
		response.Error(c, http.StatusConflict, "SLOT_ALREADY_BOOKED", "This time slot was just booked. Please choose another one")
	case errors.Is(err, ErrTransient), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.Error(c, http.StatusServiceUnavailable, "TRY_AGAIN", "Booking is temporarily unavailable. Please try again")
	case errors.Is(err, ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Booking session not found")
	case errors.Is(err, ErrSessionClosed):
		response.Error(c, http.StatusGone, "SESSION_CLOSED", "Booking session was closed")
	case errors.Is(err, ErrSessionBusy):
		response.Error(c, http.StatusConflict, "SESSION_BUSY", "Please wait for the current request to finish")
	case errors.Is(err, ErrSubmissionInFlight):
		response.Error(c, http.StatusConflict, "SUBMISSION_IN_FLIGHT", "Your reservation is already being submitted")
	case errors.Is(err, ErrStaleResult):
		response.Error(c, http.StatusConflict, "STALE_RESULT", "Selection changed while the request was running")
	case errors.Is(err, ErrInvalidStep):
		response.Error(c, http.StatusConflict, "INVALID_STEP", "This action is not available at the current booking step")
	case errors.Is(err, ErrSlotUnavailable):
		response.Error(c, http.StatusConflict, "SLOT_UNAVAILABLE", "This time slot is not available")
	default:
		h.log.Error("booking request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process booking request")
	}
}
