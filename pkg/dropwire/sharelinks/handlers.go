package sharelinks

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/dropwire/dropwire/pkg/dropwire/access"
	"github.com/dropwire/dropwire/pkg/dropwire/auth"
	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles share link endpoints
type Handler struct {
	db      *gorm.DB
	svc     *access.Service
	baseURL string
}

// NewHandler creates a new share links handler. baseURL is used to build the
// public landing URLs embedded in responses.
func NewHandler(db *gorm.DB, svc *access.Service, baseURL string) *Handler {
	return &Handler{db: db, svc: svc, baseURL: baseURL}
}

// CreateLinkRequest is the payload for creating a share link
type CreateLinkRequest struct {
	DropID uint `json:"drop_id" binding:"required"`
}

// LinkResponse is the creator's view of a share link
type LinkResponse struct {
	ID         uint      `json:"id"`
	Token      string    `json:"token"`
	URL        string    `json:"url"`
	DropID     uint      `json:"drop_id"`
	DropTitle  string    `json:"drop_title"`
	ClaimCount uint      `json:"claim_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// LandingResponse is what an anonymous visitor sees on a share link
type LandingResponse struct {
	Token     string `json:"token"`
	DropTitle string `json:"drop_title"`
	SharedBy  string `json:"shared_by"`
	Message   string `json:"message"`
}

// ClaimResponse reports the outcome of claiming a share link
type ClaimResponse struct {
	Connected bool   `json:"connected"`
	CanView   bool   `json:"can_view"`
	DropID    uint   `json:"drop_id"`
	Message   string `json:"message"`
}

func (h *Handler) toLinkResponse(link *models.ShareLink) LinkResponse {
	return LinkResponse{
		ID:         link.ID,
		Token:      link.Token,
		URL:        h.baseURL + "/s/" + link.Token,
		DropID:     link.DropID,
		DropTitle:  link.Drop.Title,
		ClaimCount: link.ClaimCount,
		CreatedAt:  link.CreatedAt,
	}
}

func generateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// Create creates a share link for a drop
// @Summary Create a share link
// @Description Create a public link advertising one of the caller's drops. Anyone who claims it becomes a connection of the caller.
// @Tags share
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateLinkRequest true "Drop to share"
// @Success 201 {object} LinkResponse
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /share [post]
func (h *Handler) Create(c *gin.Context) {
	userID := auth.GetUserID(c)

	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var drop models.Drop
	if err := h.db.First(&drop, req.DropID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "drop not found"})
		return
	}
	if drop.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your drop"})
		return
	}

	token, err := generateToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	link := models.ShareLink{
		CreatorID: userID,
		DropID:    drop.ID,
		Token:     token,
	}
	if err := h.db.Create(&link).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create share link"})
		return
	}

	link.Drop = drop
	c.JSON(http.StatusCreated, h.toLinkResponse(&link))
}

// List returns the caller's share links
// @Summary List my share links
// @Description List share links created by the caller, newest first
// @Tags share
// @Produce json
// @Security BearerAuth
// @Success 200 {array} LinkResponse
// @Failure 401 {object} map[string]string
// @Router /share [get]
func (h *Handler) List(c *gin.Context) {
	userID := auth.GetUserID(c)

	var links []models.ShareLink
	err := h.db.Preload("Drop").
		Where("creator_id = ?", userID).
		Order("created_at DESC").
		Find(&links).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list share links"})
		return
	}

	response := make([]LinkResponse, 0, len(links))
	for i := range links {
		response = append(response, h.toLinkResponse(&links[i]))
	}
	c.JSON(http.StatusOK, response)
}

// Delete revokes a share link
// @Summary Delete a share link
// @Description Revoke a share link. Existing connections made through it are kept.
// @Tags share
// @Produce json
// @Security BearerAuth
// @Param token path string true "Link token"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /share/{token} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID := auth.GetUserID(c)
	token := c.Param("token")

	var link models.ShareLink
	if err := h.db.Where("token = ?", token).First(&link).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "share link not found"})
		return
	}
	if link.CreatorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your share link"})
		return
	}

	if err := h.db.Delete(&link).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete share link"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "share link deleted"})
}

// Landing shows a share link to an anonymous visitor
// @Summary Share link landing
// @Description Public preview of a shared drop: the title and who shared it, nothing more. Log in and claim the link to connect and see the drop.
// @Tags share
// @Produce json
// @Param token path string true "Link token"
// @Success 200 {object} LandingResponse
// @Failure 404 {object} map[string]string
// @Router /s/{token} [get]
func (h *Handler) Landing(c *gin.Context) {
	token := c.Param("token")

	var link models.ShareLink
	err := h.db.Preload("Drop").Preload("Creator").
		Where("token = ?", token).
		First(&link).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "share link not found"})
		return
	}

	c.JSON(http.StatusOK, LandingResponse{
		Token:     link.Token,
		DropTitle: link.Drop.Title,
		SharedBy:  link.Creator.Name,
		Message:   "claim this link while signed in to connect and see the drop",
	})
}

// Claim claims a share link
// @Summary Claim a share link
// @Description Connect the caller with the link's creator. Both sides' "All Connections" groups are synchronized immediately, so shares to connections flow in both directions at once. Claiming your own link, or claiming twice, is harmless.
// @Tags share
// @Produce json
// @Security BearerAuth
// @Param token path string true "Link token"
// @Success 200 {object} ClaimResponse
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /share/{token}/claim [post]
func (h *Handler) Claim(c *gin.Context) {
	userID := auth.GetUserID(c)
	token := c.Param("token")

	var link models.ShareLink
	if err := h.db.Where("token = ?", token).First(&link).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "share link not found"})
		return
	}

	if link.CreatorID == userID {
		c.JSON(http.StatusOK, ClaimResponse{
			Connected: false,
			CanView:   true,
			DropID:    link.DropID,
			Message:   "this is your own share link",
		})
		return
	}

	if err := h.svc.EstablishFromShareLink(link.CreatorID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to claim share link"})
		return
	}

	// Best effort, like a click counter.
	h.db.Model(&link).UpdateColumn("claim_count", gorm.Expr("claim_count + 1"))

	canView, err := h.svc.CanView(userID, link.DropID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check visibility"})
		return
	}

	c.JSON(http.StatusOK, ClaimResponse{
		Connected: true,
		CanView:   canView,
		DropID:    link.DropID,
		Message:   "you are now connected",
	})
}

// RegisterRoutes registers share link endpoints on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	shareRoutes := rg.Group("/share")
	shareRoutes.Use(auth.AuthMiddleware())
	{
		shareRoutes.POST("", h.Create)
		shareRoutes.GET("", h.List)
		shareRoutes.DELETE("/:token", h.Delete)
		shareRoutes.POST("/:token/claim", h.Claim)
	}
}

// RegisterLandingRoutes registers the public landing route on the root router
func (h *Handler) RegisterLandingRoutes(router *gin.Engine) {
	router.GET("/s/:token", h.Landing)
}
