package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"clinicbook/internal/logging"
	"clinicbook/internal/middleware"
	"clinicbook/internal/pkg/jwt"
	"clinicbook/internal/pkg/response"
)

type Handler struct {
	service  *Service
	jwt      *jwt.Service
	feed     LiveFeed
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler builds the staff dashboard handler. With no origins listed the
// websocket only accepts same-host upgrades.
func NewHandler(service *Service, jwtService *jwt.Service, feed LiveFeed, origins []string, log *zap.Logger) *Handler {
	h := &Handler{
		service: service,
		jwt:     jwtService,
		feed:    feed,
		log:     logging.OrNop(log),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(origins) > 0 {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[o] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}
	}
	return h
}

// RegisterRoutes mounts login and the live feed on public, and the
// reservation endpoints on protected, which must already require an admin.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/login", h.Login)
	public.GET("/ws", h.LiveFeed)

	reservations := protected.Group("/reservations")
	{
		reservations.GET("", h.ListReservations)
		reservations.GET("/stats", h.GetStats)
		reservations.GET("/:id", h.GetReservation)
		reservations.PATCH("/:id/status", h.UpdateStatus)
		reservations.PATCH("/:id/notes", h.UpdateNotes)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "email and password are required")
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// LiveFeed upgrades to a websocket after checking the token query parameter.
// Browsers cannot set headers on websocket requests.
func (h *Handler) LiveFeed(c *gin.Context) {
	claims, err := h.jwt.ValidateToken(c.Query("token"))
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
		return
	}
	if claims.Role != middleware.RoleAdmin {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Admin access required")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("dashboard websocket upgrade failed", zap.Error(err))
		return
	}
	h.feed.ServeWS(conn)
}

func (h *Handler) ListReservations(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return
	}

	page, err := h.service.ListReservations(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, page)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

func (h *Handler) GetReservation(c *gin.Context) {
	r, err := h.service.GetReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reservation": r})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "status is required")
		return
	}

	r, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reservation": r})
}

func (h *Handler) UpdateNotes(c *gin.Context) {
	var req UpdateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	r, err := h.service.UpdateNotes(c.Request.Context(), c.Param("id"), req.Notes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reservation": r})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Reservation not found")
	case errors.Is(err, ErrSlotConflict):
		response.Error(c, http.StatusConflict, "SLOT_CONFLICT", "Another active reservation holds this slot")
	default:
		h.log.Error("admin request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}
