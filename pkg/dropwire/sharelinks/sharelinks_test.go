package sharelinks

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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
	handler := NewHandler(db, access.NewService(db), "http://localhost:8080")
	api := router.Group("/api")
	handler.RegisterRoutes(api)
	handler.RegisterLandingRoutes(router)
	return router
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	user := &models.User{Email: email, PasswordHash: "not-a-real-hash", Name: email}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestDrop(t *testing.T, db *gorm.DB, ownerID uint, title string) *models.Drop {
	drop := &models.Drop{OwnerID: ownerID, Title: title}
	if err := db.Create(drop).Error; err != nil {
		t.Fatalf("Failed to create test drop: %v", err)
	}
	return drop
}

func getAuthHeader(t *testing.T, user *models.User) string {
	token, err := auth.GenerateToken(user)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, router *gin.Engine, method, path, authHeader string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Failed to marshal payload: %v", err)
		}
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	router.ServeHTTP(w, req)
	return w
}

func createTestLink(t *testing.T, router *gin.Engine, owner *models.User, dropID uint) LinkResponse {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/share", getAuthHeader(t, owner), CreateLinkRequest{DropID: dropID})
	if w.Code != http.StatusCreated {
		t.Fatalf("Failed to create share link: status %d, body %s", w.Code, w.Body.String())
	}
	var link LinkResponse
	if err := json.Unmarshal(w.Body.Bytes(), &link); err != nil {
		t.Fatalf("Failed to parse link response: %v", err)
	}
	return link
}

func TestCreateShareLink(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice@example.com")
	drop := createTestDrop(t, db, alice.ID, "linkable")

	link := createTestLink(t, router, alice, drop.ID)
	if len(link.Token) != 32 {
		t.Errorf("Expected a 32-char hex token, got %q", link.Token)
	}
	if link.URL != "http://localhost:8080/s/"+link.Token {
		t.Errorf("Unexpected landing URL %q", link.URL)
	}
	if link.DropTitle != "linkable" || link.ClaimCount != 0 {
		t.Errorf("Unexpected link response: %+v", link)
	}
}

func TestCreateShareLinkOwnership(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	drop := createTestDrop(t, db, alice.ID, "alice's drop")

	w := doJSON(t, router, "POST", "/api/share", getAuthHeader(t, bob), CreateLinkRequest{DropID: drop.ID})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 sharing a foreign drop, got %d", w.Code)
	}

	w = doJSON(t, router, "POST", "/api/share", getAuthHeader(t, alice), CreateLinkRequest{DropID: 999})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for a missing drop, got %d", w.Code)
	}
}

func TestLandingIsPublicAndMinimal(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice@example.com")
	drop := &models.Drop{OwnerID: alice.ID, Title: "public title", Caption: "private caption"}
	if err := db.Create(drop).Error; err != nil {
		t.Fatalf("Failed to create drop: %v", err)
	}
	link := createTestLink(t, router, alice, drop.ID)

	// No Authorization header at all.
	w := doJSON(t, router, "GET", "/s/"+link.Token, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 on the landing page, got %d", w.Code)
	}
	var landing LandingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &landing); err != nil {
		t.Fatalf("Failed to parse landing response: %v", err)
	}
	if landing.DropTitle != "public title" || landing.SharedBy != alice.Name {
		t.Errorf("Unexpected landing content: %+v", landing)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("private caption")) {
		t.Error("The landing page must not leak the drop caption")
	}

	w = doJSON(t, router, "GET", "/s/no-such-token", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an unknown token, got %d", w.Code)
	}
}

func TestClaimConnectsBothWays(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	svc := access.NewService(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	// Alice shares a drop to her connections and advertises it with a link.
	drop := createTestDrop(t, db, alice.ID, "advertised")
	reserved, err := svc.EnsureReservedGroup(alice.ID)
	if err != nil {
		t.Fatalf("Failed to load reserved group: %v", err)
	}
	if err := svc.TagDrop(alice.ID, drop.ID, []uint{reserved.ID}); err != nil {
		t.Fatalf("Failed to tag drop: %v", err)
	}
	link := createTestLink(t, router, alice, drop.ID)

	w := doJSON(t, router, "POST", "/api/share/"+link.Token+"/claim", getAuthHeader(t, bob), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var claim ClaimResponse
	if err := json.Unmarshal(w.Body.Bytes(), &claim); err != nil {
		t.Fatalf("Failed to parse claim response: %v", err)
	}
	if !claim.Connected {
		t.Error("Expected the claim to connect the users")
	}
	if !claim.CanView {
		t.Error("Expected the advertised drop to be visible right after the claim")
	}

	// Both reserved groups were synchronized in the same flow.
	bobReserved, err := svc.EnsureReservedGroup(bob.ID)
	if err != nil {
		t.Fatalf("Failed to load bob's reserved group: %v", err)
	}
	bobDrop := createTestDrop(t, db, bob.ID, "bob shares back")
	if err := svc.TagDrop(bob.ID, bobDrop.ID, []uint{bobReserved.ID}); err != nil {
		t.Fatalf("Failed to tag drop: %v", err)
	}
	canView, err := svc.CanView(alice.ID, bobDrop.ID)
	if err != nil {
		t.Fatalf("CanView failed: %v", err)
	}
	if !canView {
		t.Error("Expected alice to see bob's shares without any extra sync")
	}

	var stored models.ShareLink
	db.Where("token = ?", link.Token).First(&stored)
	if stored.ClaimCount != 1 {
		t.Errorf("Expected claim count 1, got %d", stored.ClaimCount)
	}
}

func TestClaimOwnLinkIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice@example.com")
	drop := createTestDrop(t, db, alice.ID, "my own")
	link := createTestLink(t, router, alice, drop.ID)

	w := doJSON(t, router, "POST", "/api/share/"+link.Token+"/claim", getAuthHeader(t, alice), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var claim ClaimResponse
	if err := json.Unmarshal(w.Body.Bytes(), &claim); err != nil {
		t.Fatalf("Failed to parse claim response: %v", err)
	}
	if claim.Connected {
		t.Error("Claiming your own link must not create a connection")
	}

	var connCount int64
	db.Model(&models.Connection{}).Count(&connCount)
	if connCount != 0 {
		t.Errorf("Expected no connections, got %d", connCount)
	}
	var stored models.ShareLink
	db.Where("token = ?", link.Token).First(&stored)
	if stored.ClaimCount != 0 {
		t.Errorf("Expected claim count to stay 0 for a self-claim, got %d", stored.ClaimCount)
	}
}

func TestClaimIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	drop := createTestDrop(t, db, alice.ID, "claim me twice")
	link := createTestLink(t, router, alice, drop.ID)

	for i := 0; i < 2; i++ {
		w := doJSON(t, router, "POST", "/api/share/"+link.Token+"/claim", getAuthHeader(t, bob), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Claim attempt %d: expected status 200, got %d", i, w.Code)
		}
	}

	var connCount int64
	db.Model(&models.Connection{}).Count(&connCount)
	if connCount != 1 {
		t.Errorf("Expected exactly 1 connection after repeated claims, got %d", connCount)
	}
}

func TestDeleteShareLink(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	drop := createTestDrop(t, db, alice.ID, "revocable")
	link := createTestLink(t, router, alice, drop.ID)

	w := doJSON(t, router, "DELETE", "/api/share/"+link.Token, getAuthHeader(t, bob), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 deleting a foreign link, got %d", w.Code)
	}

	w = doJSON(t, router, "DELETE", "/api/share/"+link.Token, getAuthHeader(t, alice), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	// A revoked link can no longer be claimed or previewed.
	w = doJSON(t, router, "POST", "/api/share/"+link.Token+"/claim", getAuthHeader(t, bob), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 claiming a revoked link, got %d", w.Code)
	}
	w = doJSON(t, router, "GET", "/s/"+link.Token, "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 landing on a revoked link, got %d", w.Code)
	}
}

func TestListShareLinks(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	aliceDrop := createTestDrop(t, db, alice.ID, "alice's")
	bobDrop := createTestDrop(t, db, bob.ID, "bob's")

	createTestLink(t, router, alice, aliceDrop.ID)
	createTestLink(t, router, alice, aliceDrop.ID)
	createTestLink(t, router, bob, bobDrop.ID)

	w := doJSON(t, router, "GET", "/api/share", getAuthHeader(t, alice), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var links []LinkResponse
	if err := json.Unmarshal(w.Body.Bytes(), &links); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(links) != 2 {
		t.Errorf("Expected 2 links for alice, got %d", len(links))
	}
}
