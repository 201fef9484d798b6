package admin

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

// Handler handles admin endpoints
type Handler struct {
	db  *gorm.DB
	svc *access.Service
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB, svc *access.Service) *Handler {
	return &Handler{db: db, svc: svc}
}

// UserResponse is the admin view of a user
type UserResponse struct {
	ID              uint      `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	SystemRole      string    `json:"system_role"`
	CreatedAt       time.Time `json:"created_at"`
	ConnectionCount int64     `json:"connection_count"`
	GroupCount      int64     `json:"group_count"`
	DropCount       int64     `json:"drop_count"`
}

// UpdateUserRequest is the payload for updating a user; nil fields are unchanged
type UpdateUserRequest struct {
	Name       *string `json:"name"`
	SystemRole *string `json:"system_role"`
}

// StatsResponse summarizes the whole instance
type StatsResponse struct {
	TotalUsers       int64 `json:"total_users"`
	TotalConnections int64 `json:"total_connections"`
	TotalGroups      int64 `json:"total_groups"`
	TotalViewerRows  int64 `json:"total_viewer_rows"`
	TotalDrops       int64 `json:"total_drops"`
	TaggedDrops      int64 `json:"tagged_drops"`
	PrivateDrops     int64 `json:"private_drops"`
	TotalInvites     int64 `json:"total_invites"`
	TotalShareLinks  int64 `json:"total_share_links"`
	TotalLinkClaims  int64 `json:"total_link_claims"`
}

// ListUsers returns all users
// @Summary List users
// @Description List every user with connection, group, and drop counts. Admin only.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} UserResponse
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /admin/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User
	if err := h.db.Order("id ASC").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, user := range users {
		var connections, groups, drops int64
		h.db.Model(&models.Connection{}).
			Where("user_a_id = ? OR user_b_id = ?", user.ID, user.ID).
			Count(&connections)
		h.db.Model(&models.Group{}).Where("owner_id = ?", user.ID).Count(&groups)
		h.db.Model(&models.Drop{}).Where("owner_id = ?", user.ID).Count(&drops)

		response = append(response, UserResponse{
			ID:              user.ID,
			Email:           user.Email,
			Name:            user.Name,
			SystemRole:      string(user.SystemRole),
			CreatedAt:       user.CreatedAt,
			ConnectionCount: connections,
			GroupCount:      groups,
			DropCount:       drops,
		})
	}
	c.JSON(http.StatusOK, response)
}

// GetUser returns a single user
// @Summary Get a user
// @Description Fetch one user with connection, group, and drop counts. Admin only.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} UserResponse
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/users/{id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var user models.User
	if err := h.db.First(&user, uint(userID)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	var connections, groups, drops int64
	h.db.Model(&models.Connection{}).
		Where("user_a_id = ? OR user_b_id = ?", user.ID, user.ID).
		Count(&connections)
	h.db.Model(&models.Group{}).Where("owner_id = ?", user.ID).Count(&groups)
	h.db.Model(&models.Drop{}).Where("owner_id = ?", user.ID).Count(&drops)

	c.JSON(http.StatusOK, UserResponse{
		ID:              user.ID,
		Email:           user.Email,
		Name:            user.Name,
		SystemRole:      string(user.SystemRole),
		CreatedAt:       user.CreatedAt,
		ConnectionCount: connections,
		GroupCount:      groups,
		DropCount:       drops,
	})
}

// UpdateUser updates a user's name or system role
// @Summary Update a user
// @Description Change a user's display name or system role. Admins cannot demote themselves. Admin only.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body UpdateUserRequest true "Fields to update"
// @Success 200 {object} UserResponse
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/users/{id} [put]
func (h *Handler) UpdateUser(c *gin.Context) {
	callerID := auth.GetUserID(c)
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var user models.User
	if err := h.db.First(&user, uint(userID)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if uint(userID) == callerID && req.SystemRole != nil && *req.SystemRole != string(models.SystemRoleAdmin) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot demote yourself"})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.SystemRole != nil {
		role := models.SystemRole(*req.SystemRole)
		if role != models.SystemRoleAdmin && role != models.SystemRoleUser {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid system role"})
			return
		}
		updates["system_role"] = role
	}
	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user"})
			return
		}
	}

	// Reload user
	h.db.First(&user, uint(userID))

	var connections, groups, drops int64
	h.db.Model(&models.Connection{}).
		Where("user_a_id = ? OR user_b_id = ?", user.ID, user.ID).
		Count(&connections)
	h.db.Model(&models.Group{}).Where("owner_id = ?", user.ID).Count(&groups)
	h.db.Model(&models.Drop{}).Where("owner_id = ?", user.ID).Count(&drops)

	c.JSON(http.StatusOK, UserResponse{
		ID:              user.ID,
		Email:           user.Email,
		Name:            user.Name,
		SystemRole:      string(user.SystemRole),
		CreatedAt:       user.CreatedAt,
		ConnectionCount: connections,
		GroupCount:      groups,
		DropCount:       drops,
	})
}

// GetStats returns instance-wide totals
// @Summary Instance stats
// @Description Totals across users, connections, groups, the viewer index, drops, invites, and share links. Admin only.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} StatsResponse
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse
	h.db.Model(&models.User{}).Count(&stats.TotalUsers)
	h.db.Model(&models.Connection{}).Count(&stats.TotalConnections)
	h.db.Model(&models.Group{}).Count(&stats.TotalGroups)
	h.db.Model(&models.GroupViewer{}).Count(&stats.TotalViewerRows)
	h.db.Model(&models.Drop{}).Count(&stats.TotalDrops)
	h.db.Model(&models.DropTag{}).Distinct("drop_id").Count(&stats.TaggedDrops)
	stats.PrivateDrops = stats.TotalDrops - stats.TaggedDrops
	h.db.Model(&models.ShareRequest{}).Count(&stats.TotalInvites)
	h.db.Model(&models.ShareLink{}).Count(&stats.TotalShareLinks)

	var claims struct{ Total int64 }
	h.db.Model(&models.ShareLink{}).Select("COALESCE(SUM(claim_count), 0) as total").Scan(&claims)
	stats.TotalLinkClaims = claims.Total

	c.JSON(http.StatusOK, stats)
}

// RebuildViewers re-derives every reserved group
// @Summary Rebuild reserved groups
// @Description Re-synchronize every user's "All Connections" group from the connection graph. Safe to run at any time; the viewer index is derived state.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /admin/rebuild-viewers [post]
func (h *Handler) RebuildViewers(c *gin.Context) {
	processed, err := h.svc.RebuildReservedGroups()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rebuild reserved groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users_processed": processed})
}

// DeleteUser removes a user and everything they own
// @Summary Delete a user
// @Description Delete a user together with their connections, groups, viewer entries, drops, invitations, and share links. Admin only.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/users/{id} [delete]
func (h *Handler) DeleteUser(c *gin.Context) {
	callerID := auth.GetUserID(c)
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if uint(userID) == callerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete yourself"})
		return
	}

	var user models.User
	if err := h.db.First(&user, uint(userID)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		// Graph edges in both directions.
		if err := tx.Where("user_a_id = ? OR user_b_id = ?", user.ID, user.ID).
			Delete(&models.Connection{}).Error; err != nil {
			return err
		}
		// Entries listing this user as a viewer in other users' groups.
		if err := tx.Where("viewer_id = ?", user.ID).Delete(&models.GroupViewer{}).Error; err != nil {
			return err
		}

		var groupIDs []uint
		if err := tx.Model(&models.Group{}).Where("owner_id = ?", user.ID).
			Pluck("id", &groupIDs).Error; err != nil {
			return err
		}
		if len(groupIDs) > 0 {
			if err := tx.Where("group_id IN ?", groupIDs).Delete(&models.GroupViewer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("group_id IN ?", groupIDs).Delete(&models.DropTag{}).Error; err != nil {
				return err
			}
			if err := tx.Where("owner_id = ?", user.ID).Delete(&models.Group{}).Error; err != nil {
				return err
			}
		}

		var dropIDs []uint
		if err := tx.Model(&models.Drop{}).Where("owner_id = ?", user.ID).
			Pluck("id", &dropIDs).Error; err != nil {
			return err
		}
		if len(dropIDs) > 0 {
			if err := tx.Where("drop_id IN ?", dropIDs).Delete(&models.DropTag{}).Error; err != nil {
				return err
			}
			if err := tx.Where("drop_id IN ?", dropIDs).Delete(&models.ShareLink{}).Error; err != nil {
				return err
			}
			if err := tx.Where("owner_id = ?", user.ID).Delete(&models.Drop{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("requester_id = ? OR target_id = ?", user.ID, user.ID).
			Delete(&models.ShareRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("creator_id = ?", user.ID).Delete(&models.ShareLink{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

// RegisterRoutes registers admin endpoints on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	adminRoutes := rg.Group("/admin")
	adminRoutes.Use(auth.AuthMiddleware(), auth.RequireAdmin())
	{
		adminRoutes.GET("/users", h.ListUsers)
		adminRoutes.GET("/users/:id", h.GetUser)
		adminRoutes.PUT("/users/:id", h.UpdateUser)
		adminRoutes.DELETE("/users/:id", h.DeleteUser)
		adminRoutes.GET("/stats", h.GetStats)
		adminRoutes.POST("/rebuild-viewers", h.RebuildViewers)
	}
}
