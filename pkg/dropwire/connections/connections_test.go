package connections

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
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

func doGet(t *testing.T, router *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestListConnections(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	svc := access.NewService(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	carol := createTestUser(t, db, "carol@example.com")

	if err := svc.Connect(alice.ID, bob.ID); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	if err := svc.Connect(carol.ID, alice.ID); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	w := doGet(t, router, "/api/connections", getAuthHeader(t, alice))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var conns []ConnectionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &conns); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("Expected 2 connections, got %d", len(conns))
	}
	found := map[uint]bool{}
	for _, conn := range conns {
		found[conn.UserID] = true
		if conn.UserID == alice.ID {
			t.Error("The caller must never appear in their own connection list")
		}
		if conn.Email == "" || conn.Name == "" {
			t.Errorf("Expected peer details, got %+v", conn)
		}
	}
	if !found[bob.ID] || !found[carol.ID] {
		t.Errorf("Expected bob and carol as peers, got %v", found)
	}

	// Bob sees the same edge from his side.
	w = doGet(t, router, "/api/connections", getAuthHeader(t, bob))
	if err := json.Unmarshal(w.Body.Bytes(), &conns); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(conns) != 1 || conns[0].UserID != alice.ID {
		t.Errorf("Expected bob's single peer to be alice, got %d entries", len(conns))
	}
}

func TestCheckConnection(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	svc := access.NewService(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	carol := createTestUser(t, db, "carol@example.com")

	if err := svc.Connect(alice.ID, bob.ID); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	checks := []struct {
		peer uint
		want bool
	}{
		{bob.ID, true},
		{carol.ID, false},
		{alice.ID, false},
	}
	for _, check := range checks {
		path := "/api/connections/check/" + strconv.FormatUint(uint64(check.peer), 10)
		w := doGet(t, router, path, getAuthHeader(t, alice))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var resp map[string]bool
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if resp["connected"] != check.want {
			t.Errorf("check(%d): expected connected=%v, got %v", check.peer, check.want, resp["connected"])
		}
	}
}

func TestConnectionsRequireAuth(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	w := doGet(t, router, "/api/connections", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without a token, got %d", w.Code)
	}
}
