package connections

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dropwire/dropwire/pkg/dropwire/access"
	"github.com/dropwire/dropwire/pkg/dropwire/auth"
	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles connection endpoints
type Handler struct {
	db  *gorm.DB
	svc *access.Service
}

// NewHandler creates a new connections handler
func NewHandler(db *gorm.DB, svc *access.Service) *Handler {
	return &Handler{db: db, svc: svc}
}

// ConnectionResponse is one peer in the caller's connection list
type ConnectionResponse struct {
	UserID      uint      `json:"user_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	ConnectedAt time.Time `json:"connected_at"`
}

// List returns the caller's connections
// @Summary List my connections
// @Description List every user the caller is connected to, newest first
// @Tags connections
// @Produce json
// @Security BearerAuth
// @Success 200 {array} ConnectionResponse
// @Failure 401 {object} map[string]string
// @Router /connections [get]
func (h *Handler) List(c *gin.Context) {
	userID := auth.GetUserID(c)

	var conns []models.Connection
	err := h.db.Preload("UserA").Preload("UserB").
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&conns).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list connections"})
		return
	}

	response := make([]ConnectionResponse, 0, len(conns))
	for _, conn := range conns {
		peer := conn.UserA
		if conn.UserAID == userID {
			peer = conn.UserB
		}
		response = append(response, ConnectionResponse{
			UserID:      peer.ID,
			Email:       peer.Email,
			Name:        peer.Name,
			ConnectedAt: conn.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, response)
}

// Check reports whether the caller is connected to another user
// @Summary Check a connection
// @Description Report whether a connection exists between the caller and the given user
// @Tags connections
// @Produce json
// @Security BearerAuth
// @Param userID path int true "User ID"
// @Success 200 {object} map[string]bool
// @Failure 401 {object} map[string]string
// @Router /connections/check/{userID} [get]
func (h *Handler) Check(c *gin.Context) {
	userID := auth.GetUserID(c)
	peerID, err := strconv.ParseUint(c.Param("userID"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	connected, err := h.svc.IsConnected(userID, uint(peerID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check connection"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": connected})
}

// RegisterRoutes registers connection endpoints on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	connRoutes := rg.Group("/connections")
	connRoutes.Use(auth.AuthMiddleware())
	{
		connRoutes.GET("", h.List)
		connRoutes.GET("/check/:userID", h.Check)
	}
}
