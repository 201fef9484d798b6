package groups

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dropwire/dropwire/pkg/dropwire/access"
	"github.com/dropwire/dropwire/pkg/dropwire/auth"
	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles group endpoints
type Handler struct {
	db  *gorm.DB
	svc *access.Service
}

// NewHandler creates a new groups handler
func NewHandler(db *gorm.DB, svc *access.Service) *Handler {
	return &Handler{db: db, svc: svc}
}

// CreateGroupRequest is the payload for creating a group
type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=500"`
}

// UpdateGroupRequest is the payload for updating a group
type UpdateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// GroupResponse is the public view of a group
type GroupResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Reserved    bool      `json:"reserved"`
	OwnerID     uint      `json:"owner_id"`
	ViewerCount int64     `json:"viewer_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *Handler) toGroupResponse(group *models.Group) GroupResponse {
	var count int64
	h.db.Model(&models.GroupViewer{}).Where("group_id = ?", group.ID).Count(&count)
	return GroupResponse{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		Reserved:    group.Reserved,
		OwnerID:     group.OwnerID,
		ViewerCount: count,
		CreatedAt:   group.CreatedAt,
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

// List returns the caller's groups
// @Summary List my groups
// @Description List all groups owned by the caller. The reserved "All Connections" group is synchronized against the caller's connections first, so its viewer set is current in the response.
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Success 200 {array} GroupResponse
// @Failure 401 {object} map[string]string
// @Router /groups [get]
func (h *Handler) List(c *gin.Context) {
	userID := auth.GetUserID(c)

	// Listing groups is the read path users hit before sharing, so bring
	// the reserved group up to date with the connection graph here.
	if err := h.svc.SyncReservedGroup(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sync reserved group"})
		return
	}

	var groups []models.Group
	if err := h.db.Where("owner_id = ?", userID).Order("reserved DESC, name ASC").Find(&groups).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list groups"})
		return
	}

	response := make([]GroupResponse, 0, len(groups))
	for i := range groups {
		response = append(response, h.toGroupResponse(&groups[i]))
	}
	c.JSON(http.StatusOK, response)
}

// Sync refreshes the caller's reserved group
// @Summary Sync the reserved group
// @Description Re-derive the "All Connections" viewer set from the caller's current connections
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Success 200 {object} GroupResponse
// @Failure 401 {object} map[string]string
// @Router /groups/sync [post]
func (h *Handler) Sync(c *gin.Context) {
	userID := auth.GetUserID(c)

	if err := h.svc.SyncReservedGroup(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sync reserved group"})
		return
	}

	group, err := h.svc.EnsureReservedGroup(userID)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": "failed to load reserved group"})
		return
	}
	c.JSON(http.StatusOK, h.toGroupResponse(group))
}

// Create creates a custom group
// @Summary Create a group
// @Description Create a custom group owned by the caller, starting with an empty viewer set
// @Tags groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateGroupRequest true "Group details"
// @Success 201 {object} GroupResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /groups [post]
func (h *Handler) Create(c *gin.Context) {
	userID := auth.GetUserID(c)

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == models.ReservedGroupName {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group name is reserved"})
		return
	}

	group := models.Group{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.db.Create(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}

	c.JSON(http.StatusCreated, h.toGroupResponse(&group))
}

// Get returns one group
// @Summary Get a group
// @Description Fetch a single group owned by the caller
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Success 200 {object} GroupResponse
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /groups/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var group models.Group
	if err := h.db.First(&group, uint(groupID)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if group.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your group"})
		return
	}

	c.JSON(http.StatusOK, h.toGroupResponse(&group))
}

// Update renames or redescribes a group
// @Summary Update a group
// @Description Update a custom group's name or description. The reserved group cannot be renamed.
// @Tags groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Param request body UpdateGroupRequest true "Fields to update"
// @Success 200 {object} GroupResponse
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /groups/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var group models.Group
	if err := h.db.First(&group, uint(groupID)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if group.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your group"})
		return
	}
	if group.Reserved {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reserved group cannot be updated"})
		return
	}
	if req.Name == models.ReservedGroupName {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group name is reserved"})
		return
	}

	if req.Name != "" {
		group.Name = req.Name
	}
	if req.Description != "" {
		group.Description = req.Description
	}
	if err := h.db.Save(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update group"})
		return
	}

	c.JSON(http.StatusOK, h.toGroupResponse(&group))
}

// Delete removes a group
// @Summary Delete a group
// @Description Delete a custom group along with its viewer entries and drop tags. Drops shared only through this group become owner-only. The reserved group cannot be deleted.
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /groups/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var group models.Group
	if err := h.db.First(&group, uint(groupID)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if group.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your group"})
		return
	}
	if group.Reserved {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reserved group cannot be deleted"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", group.ID).Delete(&models.GroupViewer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", group.ID).Delete(&models.DropTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&group).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "group deleted"})
}

// RegisterRoutes registers group endpoints on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	groupRoutes := rg.Group("/groups")
	groupRoutes.Use(auth.AuthMiddleware())
	{
		groupRoutes.GET("", h.List)
		groupRoutes.POST("", h.Create)
		groupRoutes.POST("/sync", h.Sync)
		groupRoutes.GET("/:id", h.Get)
		groupRoutes.PUT("/:id", h.Update)
		groupRoutes.DELETE("/:id", h.Delete)
		groupRoutes.GET("/:id/viewers", h.ListViewers)
		groupRoutes.PUT("/:id/viewers", h.SetViewers)
		groupRoutes.POST("/:id/viewers", h.AddViewers)
		groupRoutes.DELETE("/:id/viewers/:userID", h.RemoveViewer)
	}
}
