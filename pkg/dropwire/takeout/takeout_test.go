package takeout

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dropwire/dropwire/pkg/dropwire/access"
	"github.com/dropwire/dropwire/pkg/dropwire/auth"
	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api")
	handler := NewHandler(db, access.NewService(db))
	handler.RegisterRoutes(api)
	return router
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	user := &models.User{Email: email, PasswordHash: "not-a-real-hash", Name: email}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func getAuthHeader(t *testing.T, user *models.User) string {
	token, err := auth.GenerateToken(user)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return "Bearer " + token
}

func TestExport(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	svc := access.NewService(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	if err := svc.EstablishFromShareLink(alice.ID, bob.ID); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	friends := &models.Group{OwnerID: alice.ID, Name: "Friends", Description: "close ones"}
	if err := db.Create(friends).Error; err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}
	if err := svc.AddGroupViewers(alice.ID, friends.ID, []uint{bob.ID}); err != nil {
		t.Fatalf("Failed to add viewer: %v", err)
	}
	drop := &models.Drop{OwnerID: alice.ID, Title: "exported drop", Caption: "with caption"}
	if err := db.Create(drop).Error; err != nil {
		t.Fatalf("Failed to create drop: %v", err)
	}
	if err := svc.TagDrop(alice.ID, drop.ID, []uint{friends.ID}); err != nil {
		t.Fatalf("Failed to tag drop: %v", err)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/takeout/export", nil)
	req.Header.Set("Authorization", getAuthHeader(t, alice))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "dropwire-takeout.json") {
		t.Errorf("Expected an attachment header, got %q", w.Header().Get("Content-Disposition"))
	}

	var doc Document
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Failed to parse document: %v", err)
	}
	if doc.User.Email != "alice@example.com" {
		t.Errorf("Expected alice's profile, got %q", doc.User.Email)
	}
	if len(doc.Groups) != 2 {
		t.Fatalf("Expected 2 groups (reserved + custom), got %d", len(doc.Groups))
	}
	var custom *Group
	for i := range doc.Groups {
		if !doc.Groups[i].Reserved {
			custom = &doc.Groups[i]
		}
	}
	if custom == nil || custom.Name != "Friends" {
		t.Fatal("Expected the custom group in the export")
	}
	if len(custom.ViewerEmails) != 1 || custom.ViewerEmails[0] != "bob@example.com" {
		t.Errorf("Expected bob's email as viewer, got %v", custom.ViewerEmails)
	}
	if len(doc.Drops) != 1 || doc.Drops[0].Title != "exported drop" {
		t.Fatalf("Expected the drop in the export, got %d drops", len(doc.Drops))
	}
	if len(doc.Drops[0].GroupNames) != 1 || doc.Drops[0].GroupNames[0] != "Friends" {
		t.Errorf("Expected tag by group name, got %v", doc.Drops[0].GroupNames)
	}
}

func TestImportRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	svc := access.NewService(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	doc := Document{
		User: User{Email: "alice@example.com", Name: "Alice"},
		Groups: []Group{
			{Name: models.ReservedGroupName, Reserved: true, ViewerEmails: []string{"bob@example.com"}},
			{Name: "Friends", Description: "close ones", ViewerEmails: []string{"bob@example.com", "ghost@example.com"}},
		},
		Drops: []Drop{
			{Title: "restored drop", Caption: "came back", GroupNames: []string{"Friends"}},
			{Title: "untagged drop"},
		},
	}

	body, _ := json.Marshal(doc)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/takeout/import", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(t, alice))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var summary ImportSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("Failed to parse summary: %v", err)
	}
	if summary.GroupsCreated != 1 {
		t.Errorf("Expected 1 group created (reserved skipped), got %d", summary.GroupsCreated)
	}
	if summary.DropsCreated != 2 {
		t.Errorf("Expected 2 drops created, got %d", summary.DropsCreated)
	}
	if summary.ViewersLinked != 1 {
		t.Errorf("Expected 1 viewer re-linked, got %d", summary.ViewersLinked)
	}
	if summary.TagsCreated != 1 {
		t.Errorf("Expected 1 tag created, got %d", summary.TagsCreated)
	}
	if len(summary.Skipped) != 2 {
		t.Errorf("Expected 2 skipped notes (reserved group, ghost viewer), got %v", summary.Skipped)
	}

	// The restored tag grants real visibility.
	var restored models.Drop
	if err := db.Where("title = ?", "restored drop").First(&restored).Error; err != nil {
		t.Fatalf("Failed to find restored drop: %v", err)
	}
	canView, err := svc.CanView(bob.ID, restored.ID)
	if err != nil {
		t.Fatalf("CanView failed: %v", err)
	}
	if !canView {
		t.Error("Expected bob to see the restored drop through the re-linked group")
	}

	// No reserved group was fabricated by the import.
	var reservedCount int64
	db.Model(&models.Group{}).Where("owner_id = ? AND reserved = ?", alice.ID, true).Count(&reservedCount)
	if reservedCount != 0 {
		t.Errorf("Expected no reserved group from import, got %d", reservedCount)
	}
}

func TestImportReusesExistingGroups(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice@example.com")

	existing := &models.Group{OwnerID: alice.ID, Name: "Friends"}
	if err := db.Create(existing).Error; err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}

	doc := Document{
		Groups: []Group{{Name: "Friends"}},
		Drops:  []Drop{{Title: "tagged into existing", GroupNames: []string{"Friends"}}},
	}
	body, _ := json.Marshal(doc)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/takeout/import", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(t, alice))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var summary ImportSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("Failed to parse summary: %v", err)
	}
	if summary.GroupsCreated != 0 {
		t.Errorf("Expected the existing group to be reused, got %d created", summary.GroupsCreated)
	}

	var groupCount int64
	db.Model(&models.Group{}).Where("owner_id = ?", alice.ID).Count(&groupCount)
	if groupCount != 1 {
		t.Errorf("Expected 1 group after import, got %d", groupCount)
	}

	var tagCount int64
	db.Model(&models.DropTag{}).Where("group_id = ?", existing.ID).Count(&tagCount)
	if tagCount != 1 {
		t.Errorf("Expected the drop tagged into the existing group, got %d tags", tagCount)
	}
}
