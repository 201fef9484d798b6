package drops

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dropwire/dropwire/pkg/dropwire/access"
	"github.com/dropwire/dropwire/pkg/dropwire/auth"
	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Handler handles drop endpoints
type Handler struct {
	db  *gorm.DB
	svc *access.Service
}

// NewHandler creates a new drops handler
func NewHandler(db *gorm.DB, svc *access.Service) *Handler {
	return &Handler{db: db, svc: svc}
}

// CreateDropRequest is the payload for creating a drop
type CreateDropRequest struct {
	Title    string         `json:"title" binding:"required,min=1,max=200"`
	Caption  string         `json:"caption" binding:"max=2000"`
	Metadata datatypes.JSON `json:"metadata" swaggertype:"object"`
	// GroupIDs optionally tags the drop at creation time. Every id must be
	// a group the caller owns.
	GroupIDs []uint `json:"group_ids"`
}

// UpdateDropRequest is the payload for updating a drop
type UpdateDropRequest struct {
	Title    string         `json:"title"`
	Caption  string         `json:"caption"`
	Metadata datatypes.JSON `json:"metadata" swaggertype:"object"`
}

// DropResponse is the public view of a drop
type DropResponse struct {
	ID        uint           `json:"id"`
	OwnerID   uint           `json:"owner_id"`
	OwnerName string         `json:"owner_name,omitempty"`
	Title     string         `json:"title"`
	Caption   string         `json:"caption,omitempty"`
	Metadata  datatypes.JSON `json:"metadata,omitempty" swaggertype:"object"`
	CreatedAt time.Time      `json:"created_at"`
}

func toDropResponse(drop *models.Drop) DropResponse {
	return DropResponse{
		ID:        drop.ID,
		OwnerID:   drop.OwnerID,
		OwnerName: drop.Owner.Name,
		Title:     drop.Title,
		Caption:   drop.Caption,
		Metadata:  drop.Metadata,
		CreatedAt: drop.CreatedAt,
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, access.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, access.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, access.ErrReservedGroup):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func pagingParams(c *gin.Context) (int, int) {
	limit := 50
	offset := 0
	if l, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && l > 0 && l <= 200 {
		limit = l
	}
	if o, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && o >= 0 {
		offset = o
	}
	return limit, offset
}

// Feed returns everything the caller can see
// @Summary Drop feed
// @Description List all drops visible to the caller, newest first: their own plus drops shared with them through groups
// @Tags drops
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 200)" default(50)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {array} DropResponse
// @Failure 401 {object} map[string]string
// @Router /drops [get]
func (h *Handler) Feed(c *gin.Context) {
	userID := auth.GetUserID(c)
	limit, offset := pagingParams(c)

	drops, err := h.svc.VisibleDrops(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list drops"})
		return
	}

	response := make([]DropResponse, 0, len(drops))
	for i := range drops {
		response = append(response, toDropResponse(&drops[i]))
	}
	c.JSON(http.StatusOK, response)
}

// Mine returns the caller's own drops
// @Summary List my drops
// @Description List drops owned by the caller, newest first
// @Tags drops
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 200)" default(50)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {array} DropResponse
// @Failure 401 {object} map[string]string
// @Router /drops/mine [get]
func (h *Handler) Mine(c *gin.Context) {
	userID := auth.GetUserID(c)
	limit, offset := pagingParams(c)

	var drops []models.Drop
	err := h.db.Preload("Owner").
		Where("owner_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&drops).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list drops"})
		return
	}

	response := make([]DropResponse, 0, len(drops))
	for i := range drops {
		response = append(response, toDropResponse(&drops[i]))
	}
	c.JSON(http.StatusOK, response)
}

// Create creates a drop
// @Summary Create a drop
// @Description Create a drop owned by the caller, optionally tagging it into owned groups in the same call. An untagged drop is visible to its owner only.
// @Tags drops
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateDropRequest true "Drop details"
// @Success 201 {object} DropResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /drops [post]
func (h *Handler) Create(c *gin.Context) {
	userID := auth.GetUserID(c)

	var req CreateDropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	drop := models.Drop{
		OwnerID:  userID,
		Title:    req.Title,
		Caption:  req.Caption,
		Metadata: req.Metadata,
	}
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&drop).Error; err != nil {
			return err
		}
		if len(req.GroupIDs) > 0 {
			return h.svc.WithDB(tx).TagDrop(userID, drop.ID, req.GroupIDs)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, access.ErrNotFound) || errors.Is(err, access.ErrNotOwner) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "group_ids must name groups you own"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create drop"})
		return
	}

	h.db.Preload("Owner").First(&drop, drop.ID)
	c.JSON(http.StatusCreated, toDropResponse(&drop))
}

// Get returns one drop
// @Summary Get a drop
// @Description Fetch a single drop. Callers only ever see drops they own or that are shared with them; anything else is a 404, whether or not it exists.
// @Tags drops
// @Produce json
// @Security BearerAuth
// @Param id path int true "Drop ID"
// @Success 200 {object} DropResponse
// @Failure 404 {object} map[string]string
// @Router /drops/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID := auth.GetUserID(c)
	dropID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drop id"})
		return
	}

	canView, err := h.svc.CanView(userID, uint(dropID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check visibility"})
		return
	}
	if !canView {
		c.JSON(http.StatusNotFound, gin.H{"error": "drop not found"})
		return
	}

	var drop models.Drop
	if err := h.db.Preload("Owner").First(&drop, uint(dropID)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "drop not found"})
		return
	}
	c.JSON(http.StatusOK, toDropResponse(&drop))
}

// Update edits a drop
// @Summary Update a drop
// @Description Update a drop's title, caption, or metadata. Owner only.
// @Tags drops
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Drop ID"
// @Param request body UpdateDropRequest true "Fields to update"
// @Success 200 {object} DropResponse
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /drops/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID := auth.GetUserID(c)
	dropID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drop id"})
		return
	}

	var req UpdateDropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var drop models.Drop
	if err := h.db.First(&drop, uint(dropID)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "drop not found"})
		return
	}
	if drop.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your drop"})
		return
	}

	if req.Title != "" {
		drop.Title = req.Title
	}
	if req.Caption != "" {
		drop.Caption = req.Caption
	}
	if len(req.Metadata) > 0 {
		drop.Metadata = req.Metadata
	}
	if err := h.db.Save(&drop).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update drop"})
		return
	}

	h.db.Preload("Owner").First(&drop, drop.ID)
	c.JSON(http.StatusOK, toDropResponse(&drop))
}

// Delete removes a drop
// @Summary Delete a drop
// @Description Delete a drop along with its tags and share links. Owner only.
// @Tags drops
// @Produce json
// @Security BearerAuth
// @Param id path int true "Drop ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /drops/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID := auth.GetUserID(c)
	dropID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drop id"})
		return
	}

	var drop models.Drop
	if err := h.db.First(&drop, uint(dropID)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "drop not found"})
		return
	}
	if drop.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your drop"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("drop_id = ?", drop.ID).Delete(&models.DropTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("drop_id = ?", drop.ID).Delete(&models.ShareLink{}).Error; err != nil {
			return err
		}
		return tx.Delete(&drop).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete drop"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "drop deleted"})
}

// RegisterRoutes registers drop endpoints on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	dropRoutes := rg.Group("/drops")
	dropRoutes.Use(auth.AuthMiddleware())
	{
		dropRoutes.GET("", h.Feed)
		dropRoutes.POST("", h.Create)
		dropRoutes.GET("/mine", h.Mine)
		dropRoutes.GET("/:id", h.Get)
		dropRoutes.PUT("/:id", h.Update)
		dropRoutes.DELETE("/:id", h.Delete)
		dropRoutes.GET("/:id/tags", h.ListTags)
		dropRoutes.PUT("/:id/tags", h.ReplaceTags)
		dropRoutes.POST("/:id/tags", h.AddTags)
		dropRoutes.DELETE("/:id/tags/:groupID", h.RemoveTag)
	}
}
