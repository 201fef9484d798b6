package invites

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

func sendTestInvite(t *testing.T, router *gin.Engine, from *models.User, toEmail string) InviteResponse {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/invites", getAuthHeader(t, from),
		CreateInviteRequest{TargetEmail: toEmail, Message: "let's connect"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Failed to send invite: status %d, body %s", w.Code, w.Body.String())
	}
	var invite InviteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &invite); err != nil {
		t.Fatalf("Failed to parse invite response: %v", err)
	}
	return invite
}

func TestCreateInvite(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	invite := sendTestInvite(t, router, alice, "bob@example.com")
	if invite.Key == "" {
		t.Error("Expected a non-empty invitation key")
	}
	if invite.Requester.ID != alice.ID || invite.Target.ID != bob.ID {
		t.Errorf("Unexpected invite parties: requester=%d target=%d", invite.Requester.ID, invite.Target.ID)
	}
	if invite.Accepted || invite.Ignored {
		t.Error("Expected a fresh invite to be pending")
	}
}

func TestCreateInviteRejections(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	svc := access.NewService(db)
	alice := createTestUser(t, db, "alice@example.com")
	createTestUser(t, db, "bob@example.com")
	carol := createTestUser(t, db, "carol@example.com")

	w := doJSON(t, router, "POST", "/api/invites", getAuthHeader(t, alice),
		CreateInviteRequest{TargetEmail: "alice@example.com"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a self-invite, got %d", w.Code)
	}

	w = doJSON(t, router, "POST", "/api/invites", getAuthHeader(t, alice),
		CreateInviteRequest{TargetEmail: "nobody@example.com"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an unknown email, got %d", w.Code)
	}

	sendTestInvite(t, router, alice, "bob@example.com")
	w = doJSON(t, router, "POST", "/api/invites", getAuthHeader(t, alice),
		CreateInviteRequest{TargetEmail: "bob@example.com"})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for a duplicate pending invite, got %d", w.Code)
	}

	if err := svc.Connect(alice.ID, carol.ID); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	w = doJSON(t, router, "POST", "/api/invites", getAuthHeader(t, alice),
		CreateInviteRequest{TargetEmail: "carol@example.com"})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 inviting an existing connection, got %d", w.Code)
	}
}

func TestAcceptInvite(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	svc := access.NewService(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	invite := sendTestInvite(t, router, alice, "bob@example.com")

	w := doJSON(t, router, "POST", "/api/invites/"+invite.Key+"/accept", getAuthHeader(t, bob), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var accepted InviteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !accepted.Accepted || accepted.AcceptedAt == nil {
		t.Error("Expected the invite to be marked accepted")
	}

	connected, err := svc.IsConnected(alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("IsConnected failed: %v", err)
	}
	if !connected {
		t.Error("Expected acceptance to connect the two users")
	}

	// Only the acceptor's reserved group is synchronized by this flow.
	bobGroup, err := svc.EnsureReservedGroup(bob.ID)
	if err != nil {
		t.Fatalf("Failed to load bob's reserved group: %v", err)
	}
	var bobViewers int64
	db.Model(&models.GroupViewer{}).Where("group_id = ?", bobGroup.ID).Count(&bobViewers)
	if bobViewers != 1 {
		t.Errorf("Expected alice in bob's reserved group, got %d entries", bobViewers)
	}

	var aliceGroups int64
	db.Model(&models.Group{}).Where("owner_id = ?", alice.ID).Count(&aliceGroups)
	if aliceGroups != 0 {
		t.Errorf("Expected alice's reserved group to stay untouched, found %d groups", aliceGroups)
	}
}

func TestAcceptInviteIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	invite := sendTestInvite(t, router, alice, "bob@example.com")

	for i := 0; i < 2; i++ {
		w := doJSON(t, router, "POST", "/api/invites/"+invite.Key+"/accept", getAuthHeader(t, bob), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Accept attempt %d: expected status 200, got %d", i, w.Code)
		}
	}

	var count int64
	db.Model(&models.Connection{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected exactly 1 connection after repeated accepts, got %d", count)
	}
}

func TestAcceptInviteOwnership(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice@example.com")
	createTestUser(t, db, "bob@example.com")
	carol := createTestUser(t, db, "carol@example.com")

	invite := sendTestInvite(t, router, alice, "bob@example.com")

	w := doJSON(t, router, "POST", "/api/invites/"+invite.Key+"/accept", getAuthHeader(t, carol), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 accepting someone else's invite, got %d", w.Code)
	}

	w = doJSON(t, router, "POST", "/api/invites/no-such-key/accept", getAuthHeader(t, carol), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an unknown key, got %d", w.Code)
	}
}

func TestIgnoreInvite(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	invite := sendTestInvite(t, router, alice, "bob@example.com")

	w := doJSON(t, router, "POST", "/api/invites/"+invite.Key+"/ignore", getAuthHeader(t, bob), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	// Ignored invites vanish from the received list.
	w = doJSON(t, router, "GET", "/api/invites", getAuthHeader(t, bob), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var received []InviteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &received); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(received) != 0 {
		t.Errorf("Expected no visible invites after ignore, got %d", len(received))
	}

	// The sender still sees it, none the wiser.
	w = doJSON(t, router, "GET", "/api/invites/sent", getAuthHeader(t, alice), nil)
	var sent []InviteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &sent); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(sent) != 1 {
		t.Errorf("Expected the sent list to keep the invite, got %d", len(sent))
	}
}

func TestCancelInvite(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	invite := sendTestInvite(t, router, alice, "bob@example.com")

	w := doJSON(t, router, "DELETE", "/api/invites/"+invite.Key, getAuthHeader(t, bob), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 cancelling someone else's invite, got %d", w.Code)
	}

	w = doJSON(t, router, "DELETE", "/api/invites/"+invite.Key, getAuthHeader(t, alice), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "GET", "/api/invites", getAuthHeader(t, bob), nil)
	var received []InviteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &received); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(received) != 0 {
		t.Errorf("Expected no invites after cancel, got %d", len(received))
	}
}

func TestListReceivedInvites(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	carol := createTestUser(t, db, "carol@example.com")

	sendTestInvite(t, router, alice, "carol@example.com")
	sendTestInvite(t, router, bob, "carol@example.com")

	w := doJSON(t, router, "GET", "/api/invites", getAuthHeader(t, carol), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var received []InviteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &received); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(received) != 2 {
		t.Errorf("Expected 2 received invites, got %d", len(received))
	}
	for _, invite := range received {
		if invite.Target.ID != carol.ID {
			t.Errorf("Expected carol as target, got %d", invite.Target.ID)
		}
	}
}
