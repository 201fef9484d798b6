package invites

import (
	"errors"
	"net/http"
	"time"

	"github.com/dropwire/dropwire/pkg/dropwire/access"
	"github.com/dropwire/dropwire/pkg/dropwire/auth"
	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Handler handles invitation endpoints
type Handler struct {
	db  *gorm.DB
	svc *access.Service
}

// NewHandler creates a new invites handler
func NewHandler(db *gorm.DB, svc *access.Service) *Handler {
	return &Handler{db: db, svc: svc}
}

// CreateInviteRequest is the payload for sending an invitation
type CreateInviteRequest struct {
	TargetEmail string `json:"target_email" binding:"required,email"`
	Message     string `json:"message" binding:"max=500"`
}

// InviteUser identifies one side of an invitation
type InviteUser struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// InviteResponse is the public view of an invitation
type InviteResponse struct {
	ID         uint       `json:"id"`
	Key        string     `json:"key"`
	Requester  InviteUser `json:"requester"`
	Target     InviteUser `json:"target"`
	Message    string     `json:"message,omitempty"`
	Accepted   bool       `json:"accepted"`
	Ignored    bool       `json:"ignored"`
	CreatedAt  time.Time  `json:"created_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

func toInviteResponse(invite *models.ShareRequest) InviteResponse {
	return InviteResponse{
		ID:  invite.ID,
		Key: invite.Key,
		Requester: InviteUser{
			ID:    invite.Requester.ID,
			Email: invite.Requester.Email,
			Name:  invite.Requester.Name,
		},
		Target: InviteUser{
			ID:    invite.Target.ID,
			Email: invite.Target.Email,
			Name:  invite.Target.Name,
		},
		Message:    invite.Message,
		Accepted:   invite.Accepted,
		Ignored:    invite.Ignored,
		CreatedAt:  invite.CreatedAt,
		AcceptedAt: invite.AcceptedAt,
	}
}

// Create sends an invitation
// @Summary Send an invitation
// @Description Invite another user, by email, to connect. Accepting it will link the two accounts.
// @Tags invites
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateInviteRequest true "Invitation details"
// @Success 201 {object} InviteResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /invites [post]
func (h *Handler) Create(c *gin.Context) {
	userID := auth.GetUserID(c)

	var req CreateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var target models.User
	if err := h.db.Where("email = ?", req.TargetEmail).First(&target).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no user with that email"})
		return
	}
	if target.ID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot invite yourself"})
		return
	}

	connected, err := h.svc.IsConnected(userID, target.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check connection"})
		return
	}
	if connected {
		c.JSON(http.StatusConflict, gin.H{"error": "already connected"})
		return
	}

	var existing models.ShareRequest
	err = h.db.Where("requester_id = ? AND target_id = ? AND accepted = ?", userID, target.ID, false).
		First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "invitation already pending"})
		return
	}

	invite := models.ShareRequest{
		RequesterID: userID,
		TargetID:    target.ID,
		Key:         uuid.NewString(),
		Message:     req.Message,
	}
	if err := h.db.Create(&invite).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create invitation"})
		return
	}

	h.db.Preload("Requester").Preload("Target").First(&invite, invite.ID)
	c.JSON(http.StatusCreated, toInviteResponse(&invite))
}

// List returns invitations received by the caller
// @Summary List received invitations
// @Description List pending invitations addressed to the caller, ignored ones excluded
// @Tags invites
// @Produce json
// @Security BearerAuth
// @Success 200 {array} InviteResponse
// @Failure 401 {object} map[string]string
// @Router /invites [get]
func (h *Handler) List(c *gin.Context) {
	userID := auth.GetUserID(c)

	var invites []models.ShareRequest
	err := h.db.Preload("Requester").Preload("Target").
		Where("target_id = ? AND accepted = ? AND ignored = ?", userID, false, false).
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list invitations"})
		return
	}

	response := make([]InviteResponse, 0, len(invites))
	for i := range invites {
		response = append(response, toInviteResponse(&invites[i]))
	}
	c.JSON(http.StatusOK, response)
}

// ListSent returns invitations sent by the caller
// @Summary List sent invitations
// @Description List invitations the caller has sent, newest first
// @Tags invites
// @Produce json
// @Security BearerAuth
// @Success 200 {array} InviteResponse
// @Failure 401 {object} map[string]string
// @Router /invites/sent [get]
func (h *Handler) ListSent(c *gin.Context) {
	userID := auth.GetUserID(c)

	var invites []models.ShareRequest
	err := h.db.Preload("Requester").Preload("Target").
		Where("requester_id = ?", userID).
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list invitations"})
		return
	}

	response := make([]InviteResponse, 0, len(invites))
	for i := range invites {
		response = append(response, toInviteResponse(&invites[i]))
	}
	c.JSON(http.StatusOK, response)
}

// Accept accepts an invitation
// @Summary Accept an invitation
// @Description Accept an invitation addressed to the caller. The two accounts are connected and the caller's "All Connections" group picks up the inviter immediately; the inviter's side catches up the next time they refresh their groups. Accepting twice is harmless.
// @Tags invites
// @Produce json
// @Security BearerAuth
// @Param key path string true "Invitation key"
// @Success 200 {object} InviteResponse
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /invites/{key}/accept [post]
func (h *Handler) Accept(c *gin.Context) {
	userID := auth.GetUserID(c)
	key := c.Param("key")

	var invite models.ShareRequest
	if err := h.db.Where("key = ?", key).First(&invite).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invitation not found"})
		return
	}
	if invite.TargetID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your invitation"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if !invite.Accepted {
			now := time.Now()
			invite.Accepted = true
			invite.Ignored = false
			invite.AcceptedAt = &now
			if err := tx.Save(&invite).Error; err != nil {
				return err
			}
		}
		return h.svc.WithDB(tx).EstablishFromInvite(invite.RequesterID, invite.TargetID)
	})
	if err != nil {
		if errors.Is(err, access.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "inviter no longer exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept invitation"})
		return
	}

	h.db.Preload("Requester").Preload("Target").First(&invite, invite.ID)
	c.JSON(http.StatusOK, toInviteResponse(&invite))
}

// Ignore hides an invitation
// @Summary Ignore an invitation
// @Description Hide an invitation from the received list without telling the sender
// @Tags invites
// @Produce json
// @Security BearerAuth
// @Param key path string true "Invitation key"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /invites/{key}/ignore [post]
func (h *Handler) Ignore(c *gin.Context) {
	userID := auth.GetUserID(c)
	key := c.Param("key")

	var invite models.ShareRequest
	if err := h.db.Where("key = ?", key).First(&invite).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invitation not found"})
		return
	}
	if invite.TargetID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your invitation"})
		return
	}
	if invite.Accepted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invitation already accepted"})
		return
	}

	invite.Ignored = true
	if err := h.db.Save(&invite).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ignore invitation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "invitation ignored"})
}

// Cancel withdraws a sent invitation
// @Summary Cancel an invitation
// @Description Withdraw a pending invitation the caller sent
// @Tags invites
// @Produce json
// @Security BearerAuth
// @Param key path string true "Invitation key"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /invites/{key} [delete]
func (h *Handler) Cancel(c *gin.Context) {
	userID := auth.GetUserID(c)
	key := c.Param("key")

	var invite models.ShareRequest
	if err := h.db.Where("key = ?", key).First(&invite).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invitation not found"})
		return
	}
	if invite.RequesterID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your invitation"})
		return
	}
	if invite.Accepted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invitation already accepted"})
		return
	}

	if err := h.db.Delete(&invite).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel invitation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "invitation cancelled"})
}

// RegisterRoutes registers invitation endpoints on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	inviteRoutes := rg.Group("/invites")
	inviteRoutes.Use(auth.AuthMiddleware())
	{
		inviteRoutes.POST("", h.Create)
		inviteRoutes.GET("", h.List)
		inviteRoutes.GET("/sent", h.ListSent)
		inviteRoutes.POST("/:key/accept", h.Accept)
		inviteRoutes.POST("/:key/ignore", h.Ignore)
		inviteRoutes.DELETE("/:key", h.Cancel)
	}
}
