package groups

import (
	"net/http"
	"strconv"

	"github.com/dropwire/dropwire/pkg/dropwire/auth"
	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"github.com/gin-gonic/gin"
)

// ViewersRequest is the payload for setting or adding group viewers
type ViewersRequest struct {
	ViewerIDs []uint `json:"viewer_ids" binding:"required"`
}

// ViewerResponse is the public view of a group viewer
type ViewerResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ListViewers returns a group's viewer set
// @Summary List group viewers
// @Description List the users who can see drops tagged to this group
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Success 200 {array} ViewerResponse
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /groups/{id}/viewers [get]
func (h *Handler) ListViewers(c *gin.Context) {
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

	var entries []models.GroupViewer
	if err := h.db.Preload("Viewer").Where("group_id = ?", group.ID).Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list viewers"})
		return
	}

	response := make([]ViewerResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, ViewerResponse{
			ID:    entry.Viewer.ID,
			Email: entry.Viewer.Email,
			Name:  entry.Viewer.Name,
		})
	}
	c.JSON(http.StatusOK, response)
}

// SetViewers replaces a group's viewer set
// @Summary Replace group viewers
// @Description Replace the viewer set of a custom group. The reserved group is managed automatically and rejects manual edits.
// @Tags groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Param request body ViewersRequest true "New viewer set"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /groups/{id}/viewers [put]
func (h *Handler) SetViewers(c *gin.Context) {
	userID := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var req ViewersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.SetGroupViewers(userID, uint(groupID), req.ViewerIDs); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "viewers updated"})
}

// AddViewers adds users to a group's viewer set
// @Summary Add group viewers
// @Description Add users to a custom group's viewer set, keeping existing viewers
// @Tags groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Param request body ViewersRequest true "Viewers to add"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /groups/{id}/viewers [post]
func (h *Handler) AddViewers(c *gin.Context) {
	userID := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var req ViewersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.AddGroupViewers(userID, uint(groupID), req.ViewerIDs); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "viewers added"})
}

// RemoveViewer removes one user from a group's viewer set
// @Summary Remove a group viewer
// @Description Remove a user from a custom group's viewer set
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Param userID path int true "User ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /groups/{id}/viewers/{userID} [delete]
func (h *Handler) RemoveViewer(c *gin.Context) {
	userID := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	viewerID, err := strconv.ParseUint(c.Param("userID"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	removed, err := h.svc.RemoveGroupViewer(userID, uint(groupID), uint(viewerID))
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "viewer not in group"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "viewer removed"})
}
