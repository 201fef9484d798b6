package drops

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dropwire/dropwire/pkg/dropwire/auth"
	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"github.com/gin-gonic/gin"
)

// TagsRequest is the payload for tagging a drop into groups
type TagsRequest struct {
	GroupIDs []uint `json:"group_ids" binding:"required"`
}

// TagResponse names one group a drop is shared to
type TagResponse struct {
	GroupID   uint      `json:"group_id"`
	GroupName string    `json:"group_name"`
	Reserved  bool      `json:"reserved"`
	TaggedAt  time.Time `json:"tagged_at"`
}

// ListTags returns the groups a drop is shared to
// @Summary List drop tags
// @Description List the groups a drop is currently shared to. Owner only.
// @Tags drops
// @Produce json
// @Security BearerAuth
// @Param id path int true "Drop ID"
// @Success 200 {array} TagResponse
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /drops/{id}/tags [get]
func (h *Handler) ListTags(c *gin.Context) {
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

	var tags []models.DropTag
	if err := h.db.Preload("Group").Where("drop_id = ?", drop.ID).Find(&tags).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tags"})
		return
	}

	response := make([]TagResponse, 0, len(tags))
	for _, tag := range tags {
		response = append(response, TagResponse{
			GroupID:   tag.GroupID,
			GroupName: tag.Group.Name,
			Reserved:  tag.Group.Reserved,
			TaggedAt:  tag.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, response)
}

// ReplaceTags replaces a drop's tag set
// @Summary Replace drop tags
// @Description Replace the set of groups a drop is shared to. An empty list makes the drop owner-only.
// @Tags drops
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Drop ID"
// @Param request body TagsRequest true "New tag set"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /drops/{id}/tags [put]
func (h *Handler) ReplaceTags(c *gin.Context) {
	userID := auth.GetUserID(c)
	dropID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drop id"})
		return
	}

	var req TagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.ReplaceDropTags(userID, uint(dropID), req.GroupIDs); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "tags updated"})
}

// AddTags shares a drop into more groups
// @Summary Add drop tags
// @Description Share a drop into additional groups the caller owns, keeping existing tags
// @Tags drops
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Drop ID"
// @Param request body TagsRequest true "Groups to tag"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /drops/{id}/tags [post]
func (h *Handler) AddTags(c *gin.Context) {
	userID := auth.GetUserID(c)
	dropID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drop id"})
		return
	}

	var req TagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.TagDrop(userID, uint(dropID), req.GroupIDs); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "tags added"})
}

// RemoveTag unshares a drop from one group
// @Summary Remove a drop tag
// @Description Remove a drop from one group it was shared to
// @Tags drops
// @Produce json
// @Security BearerAuth
// @Param id path int true "Drop ID"
// @Param groupID path int true "Group ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /drops/{id}/tags/{groupID} [delete]
func (h *Handler) RemoveTag(c *gin.Context) {
	userID := auth.GetUserID(c)
	dropID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drop id"})
		return
	}
	groupID, err := strconv.ParseUint(c.Param("groupID"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	removed, err := h.svc.UntagDrop(userID, uint(dropID), uint(groupID))
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "drop is not tagged to that group"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "tag removed"})
}
