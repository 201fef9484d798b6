package takeout

import (
	"errors"
	"net/http"
	"time"

	"github.com/dropwire/dropwire/pkg/dropwire/access"
	"github.com/dropwire/dropwire/pkg/dropwire/auth"
	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Handler handles takeout endpoints
type Handler struct {
	db  *gorm.DB
	svc *access.Service
}

// NewHandler creates a new takeout handler
func NewHandler(db *gorm.DB, svc *access.Service) *Handler {
	return &Handler{db: db, svc: svc}
}

// Document is a portable snapshot of one user's content. Connections are
// deliberately absent: they belong to two people, and re-establishing them
// goes through invitations or share links, never through an import.
type Document struct {
	ExportedAt time.Time `json:"exported_at"`
	User       User      `json:"user"`
	Groups     []Group   `json:"groups"`
	Drops      []Drop    `json:"drops"`
}

// User is the profile part of a takeout document
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Group is one group in a takeout document
type Group struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Reserved     bool     `json:"reserved"`
	ViewerEmails []string `json:"viewer_emails,omitempty"`
}

// Drop is one drop in a takeout document
type Drop struct {
	Title      string         `json:"title"`
	Caption    string         `json:"caption,omitempty"`
	Metadata   datatypes.JSON `json:"metadata,omitempty" swaggertype:"object"`
	CreatedAt  time.Time      `json:"created_at"`
	GroupNames []string       `json:"group_names,omitempty"`
}

// ImportSummary reports what an import actually did
type ImportSummary struct {
	GroupsCreated int      `json:"groups_created"`
	DropsCreated  int      `json:"drops_created"`
	ViewersLinked int      `json:"viewers_linked"`
	TagsCreated   int      `json:"tags_created"`
	Skipped       []string `json:"skipped,omitempty"`
}

// Export downloads the caller's content
// @Summary Export my data
// @Description Download the caller's groups and drops as a JSON document. Viewer sets are exported as emails, tags as group names, so the document survives a move between instances.
// @Tags takeout
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Document
// @Failure 401 {object} map[string]string
// @Router /takeout/export [get]
func (h *Handler) Export(c *gin.Context) {
	userID := auth.GetUserID(c)

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	doc := Document{
		ExportedAt: time.Now().UTC(),
		User:       User{Email: user.Email, Name: user.Name},
	}

	var groups []models.Group
	if err := h.db.Where("owner_id = ?", userID).Order("id ASC").Find(&groups).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export groups"})
		return
	}
	groupNames := make(map[uint]string, len(groups))
	for _, group := range groups {
		groupNames[group.ID] = group.Name

		var entries []models.GroupViewer
		if err := h.db.Preload("Viewer").Where("group_id = ?", group.ID).Find(&entries).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export viewers"})
			return
		}
		emails := make([]string, 0, len(entries))
		for _, entry := range entries {
			emails = append(emails, entry.Viewer.Email)
		}
		doc.Groups = append(doc.Groups, Group{
			Name:         group.Name,
			Description:  group.Description,
			Reserved:     group.Reserved,
			ViewerEmails: emails,
		})
	}

	var drops []models.Drop
	if err := h.db.Where("owner_id = ?", userID).Order("id ASC").Find(&drops).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export drops"})
		return
	}
	for _, drop := range drops {
		var tags []models.DropTag
		if err := h.db.Where("drop_id = ?", drop.ID).Find(&tags).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export tags"})
			return
		}
		names := make([]string, 0, len(tags))
		for _, tag := range tags {
			if name, ok := groupNames[tag.GroupID]; ok {
				names = append(names, name)
			}
		}
		doc.Drops = append(doc.Drops, Drop{
			Title:      drop.Title,
			Caption:    drop.Caption,
			Metadata:   drop.Metadata,
			CreatedAt:  drop.CreatedAt,
			GroupNames: names,
		})
	}

	c.Header("Content-Disposition", `attachment; filename="dropwire-takeout.json"`)
	c.JSON(http.StatusOK, doc)
}

// Import restores content from a takeout document
// @Summary Import my data
// @Description Re-create groups and drops from a takeout document. The reserved group is skipped (it is derived from connections), groups the caller already has are reused, viewer emails that match existing users are re-linked, and the rest is reported as skipped.
// @Tags takeout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param document body Document true "Takeout document"
// @Success 200 {object} ImportSummary
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /takeout/import [post]
func (h *Handler) Import(c *gin.Context) {
	userID := auth.GetUserID(c)

	var doc Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var summary ImportSummary
	err := h.db.Transaction(func(tx *gorm.DB) error {
		svc := h.svc.WithDB(tx)
		groupIDs := make(map[string]uint)

		for _, in := range doc.Groups {
			if in.Reserved || in.Name == models.ReservedGroupName {
				// Derived from the connection graph, never imported.
				summary.Skipped = append(summary.Skipped, "group "+in.Name+": reserved groups are rebuilt from connections")
				continue
			}
			var group models.Group
			err := tx.Where("owner_id = ? AND name = ?", userID, in.Name).First(&group).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				group = models.Group{OwnerID: userID, Name: in.Name, Description: in.Description}
				if err := tx.Create(&group).Error; err != nil {
					return err
				}
				summary.GroupsCreated++
			} else if err != nil {
				return err
			}
			groupIDs[in.Name] = group.ID

			var viewerIDs []uint
			for _, email := range in.ViewerEmails {
				var viewer models.User
				if err := tx.Where("email = ?", email).First(&viewer).Error; err != nil {
					summary.Skipped = append(summary.Skipped, "viewer "+email+": no such user")
					continue
				}
				viewerIDs = append(viewerIDs, viewer.ID)
			}
			if len(viewerIDs) > 0 {
				if err := svc.AddGroupViewers(userID, group.ID, viewerIDs); err != nil {
					return err
				}
				summary.ViewersLinked += len(viewerIDs)
			}
		}

		for _, in := range doc.Drops {
			drop := models.Drop{
				OwnerID:  userID,
				Title:    in.Title,
				Caption:  in.Caption,
				Metadata: in.Metadata,
			}
			if err := tx.Create(&drop).Error; err != nil {
				return err
			}
			summary.DropsCreated++

			var tagIDs []uint
			for _, name := range in.GroupNames {
				if name == models.ReservedGroupName {
					reserved, err := svc.EnsureReservedGroup(userID)
					if err != nil {
						return err
					}
					tagIDs = append(tagIDs, reserved.ID)
					continue
				}
				id, ok := groupIDs[name]
				if !ok {
					var group models.Group
					if err := tx.Where("owner_id = ? AND name = ?", userID, name).First(&group).Error; err != nil {
						summary.Skipped = append(summary.Skipped, "tag "+name+": no such group")
						continue
					}
					id = group.ID
					groupIDs[name] = id
				}
				tagIDs = append(tagIDs, id)
			}
			if len(tagIDs) > 0 {
				if err := svc.TagDrop(userID, drop.ID, tagIDs); err != nil {
					return err
				}
				summary.TagsCreated += len(tagIDs)
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to import document"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// RegisterRoutes registers takeout endpoints on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	takeoutRoutes := rg.Group("/takeout")
	takeoutRoutes.Use(auth.AuthMiddleware())
	{
		takeoutRoutes.GET("/export", h.Export)
		takeoutRoutes.POST("/import", h.Import)
	}
}
