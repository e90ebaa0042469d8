package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"medtrack/internal/config"
	"medtrack/internal/models"
	"medtrack/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB initializes a test database
func setupTestDB(t *testing.T) *config.Config {
	tmpDir := os.TempDir()
	testDBPath := fmt.Sprintf("%s/medtrack_test_%d.db", tmpDir, time.Now().UnixNano())

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Type: "sqlite",
			SQLite: config.SQLiteConfig{
				Path: testDBPath,
			},
		},
		JWT: config.JWTConfig{
			Secret:    "test-secret-key-for-testing-only",
			ExpiresIn: "24h",
			Issuer:    "medtrack-test",
		},
		Security: config.SecurityConfig{
			BcryptCost: 10,
		},
		Records: config.RecordsConfig{
			RecentDays: 3,
		},
	}

	err := models.InitDB(cfg)
	require.NoError(t, err)

	return cfg
}

// cleanupTestDB cleans up test database
func cleanupTestDB(t *testing.T, cfg *config.Config) {
	if models.DB != nil {
		sqlDB, err := models.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
		if cfg != nil && cfg.Database.Type == "sqlite" {
			os.Remove(cfg.Database.SQLite.Path)
		}
	}
	models.DB = nil
}

// createTestUser creates a test user and returns it
func createTestUser(t *testing.T, authService *services.AuthService, username, password string, isAdmin bool) *models.User {
	user, err := authService.Register(username, password)
	require.NoError(t, err)
	if isAdmin {
		user.IsAdmin = true
		require.NoError(t, models.DB.Save(user).Error)
	}
	return user
}

// createTestToken creates a JWT token with a matching session row
func createTestToken(t *testing.T, cfg *config.Config, authService *services.AuthService, user *models.User) string {
	expiresIn, _ := time.ParseDuration(cfg.JWT.ExpiresIn)
	if expiresIn == 0 {
		expiresIn = 24 * time.Hour
	}
	now := time.Now()
	expiresAt := now.Add(expiresIn)

	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"is_admin": user.IsAdmin,
		"exp":      expiresAt.Unix(),
		"iat":      now.Unix(),
		"iss":      cfg.JWT.Issuer,
		"jti":      fmt.Sprintf("%d-%d", user.ID, now.UnixNano()), // unique per token
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JWT.Secret))
	require.NoError(t, err)

	err = authService.CreateSession(user.ID, tokenString, expiresAt)
	require.NoError(t, err)

	return tokenString
}

// setupTestRouter creates a test router with routes
func setupTestRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r, cfg)
	return r
}

func doJSON(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthRoutes(t *testing.T) {
	cfg := setupTestDB(t)
	defer cleanupTestDB(t, cfg)

	authService := services.NewAuthService(cfg)
	router := setupTestRouter(cfg)

	t.Run("POST /api/auth/register - Success", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/register", "", gin.H{
			"username": "alice",
			"password": "password123",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		var user models.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
		assert.Equal(t, "alice", user.Username)
		assert.False(t, user.IsAdmin)
		assert.True(t, user.IsActive)
	})

	t.Run("POST /api/auth/register - Cannot self-grant admin", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/register", "", gin.H{
			"username": "mallory",
			"password": "password123",
			"is_admin": true,
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		var user models.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
		assert.False(t, user.IsAdmin)
	})

	t.Run("POST /api/auth/register - Duplicate username", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/register", "", gin.H{
			"username": "alice",
			"password": "password123",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "username already registered", resp["error"])
	})

	t.Run("POST /api/auth/register - Password too short", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/register", "", gin.H{
			"username": "bob",
			"password": "short",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("POST /api/auth/login - Success", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/login", "", gin.H{
			"username": "alice",
			"password": "password123",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Token string      `json:"token"`
			User  models.User `json:"user"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "alice", resp.User.Username)
	})

	t.Run("POST /api/auth/login - Wrong password", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/login", "", gin.H{
			"username": "alice",
			"password": "wrongpassword",
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("POST /api/auth/login - Unknown user", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/login", "", gin.H{
			"username": "nobody",
			"password": "password123",
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("POST /api/auth/login - Inactive account", func(t *testing.T) {
		banned := createTestUser(t, authService, "banned", "password123", false)
		banned.IsActive = false
		require.NoError(t, models.DB.Save(banned).Error)

		w := doJSON(router, "POST", "/api/auth/login", "", gin.H{
			"username": "banned",
			"password": "password123",
		})

		// Same response as wrong credentials; the cause is not leaked
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Invalid credentials", resp["error"])
	})

	t.Run("GET /api/auth/me - Success", func(t *testing.T) {
		user := createTestUser(t, authService, "me-user", "password123", false)
		token := createTestToken(t, cfg, authService, user)

		w := doJSON(router, "GET", "/api/auth/me", token, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var me models.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
		assert.Equal(t, user.ID, me.ID)
	})

	t.Run("GET /api/auth/me - Invalid token", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/auth/me", "garbage-token", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("GET /api/auth/me - Missing token", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("GET /api/auth/me - Expired token", func(t *testing.T) {
		user := createTestUser(t, authService, "expired-user", "password123", false)
		require.NoError(t, authService.CreateSession(user.ID, "expired-token", time.Now().Add(-time.Hour)))

		w := doJSON(router, "GET", "/api/auth/me", "expired-token", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("POST /api/auth/logout - Token stops resolving", func(t *testing.T) {
		user := createTestUser(t, authService, "logout-user", "password123", false)
		token := createTestToken(t, cfg, authService, user)

		w := doJSON(router, "POST", "/api/auth/logout", token, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(router, "GET", "/api/auth/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRecordRoutes(t *testing.T) {
	cfg := setupTestDB(t)
	defer cleanupTestDB(t, cfg)

	authService := services.NewAuthService(cfg)
	router := setupTestRouter(cfg)

	user := createTestUser(t, authService, "user", "password123", false)
	other := createTestUser(t, authService, "other", "password123", false)
	token := createTestToken(t, cfg, authService, user)
	otherToken := createTestToken(t, cfg, authService, other)

	t.Run("POST /api/records - Success", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/records", token, gin.H{
			"date":          "2024-06-09",
			"morning_taken": true,
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		var record models.MedicationRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
		assert.NotZero(t, record.ID)
		assert.Equal(t, user.ID, record.UserID)
		assert.Equal(t, "2024-06-09", record.Date)
		assert.True(t, record.MorningTaken)
		assert.False(t, record.AfternoonTaken)
		assert.False(t, record.EveningTaken)
	})

	t.Run("POST /api/records - Duplicate date conflicts", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/records", token, gin.H{
			"date": "2024-06-09",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("POST /api/records - Same date for another user is fine", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/records", otherToken, gin.H{
			"date": "2024-06-09",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("POST /api/records - Invalid date", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/records", token, gin.H{
			"date": "June 9th",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("PUT /api/records/:id - Success", func(t *testing.T) {
		var record models.MedicationRecord
		require.NoError(t, models.DB.Where("user_id = ? AND date = ?", user.ID, "2024-06-09").First(&record).Error)

		w := doJSON(router, "PUT", fmt.Sprintf("/api/records/%d", record.ID), token, gin.H{
			"date":            "2024-06-09",
			"morning_taken":   true,
			"afternoon_taken": true,
			"notes":           "after lunch",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		var updated models.MedicationRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
		assert.Equal(t, record.ID, updated.ID)
		assert.True(t, updated.MorningTaken)
		assert.True(t, updated.AfternoonTaken)
		assert.Equal(t, "after lunch", updated.Notes)
	})

	t.Run("PUT /api/records/:id - Cannot touch another user's record", func(t *testing.T) {
		var record models.MedicationRecord
		require.NoError(t, models.DB.Where("user_id = ? AND date = ?", user.ID, "2024-06-09").First(&record).Error)

		w := doJSON(router, "PUT", fmt.Sprintf("/api/records/%d", record.ID), otherToken, gin.H{
			"date":          "2024-06-09",
			"evening_taken": true,
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("PUT /api/records/:id - Not found", func(t *testing.T) {
		w := doJSON(router, "PUT", "/api/records/99999", token, gin.H{
			"date": "2024-06-09",
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("GET /api/records - Own records only", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/records", token, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Records []models.MedicationRecord `json:"records"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Records, 1)
		assert.Equal(t, user.ID, resp.Records[0].UserID)
	})

	t.Run("GET /api/records/recent - Window boundaries", func(t *testing.T) {
		dates := []string{
			time.Now().Format("2006-01-02"),
			time.Now().AddDate(0, 0, -2).Format("2006-01-02"),
			time.Now().AddDate(0, 0, -3).Format("2006-01-02"),
		}
		for _, d := range dates {
			w := doJSON(router, "POST", "/api/records", token, gin.H{"date": d})
			require.Equal(t, http.StatusCreated, w.Code)
		}

		w := doJSON(router, "GET", "/api/records/recent", token, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Records []models.MedicationRecord `json:"records"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		// today and today-2 fall inside the 3-day window, today-3 does not
		require.Len(t, resp.Records, 2)
		assert.Equal(t, dates[0], resp.Records[0].Date)
		assert.Equal(t, dates[1], resp.Records[1].Date)
	})

	t.Run("GET /api/records - Unauthorized", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/records", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAdminRoutes(t *testing.T) {
	cfg := setupTestDB(t)
	defer cleanupTestDB(t, cfg)

	authService := services.NewAuthService(cfg)
	router := setupTestRouter(cfg)

	admin := createTestUser(t, authService, "admin", "password123", true)
	user := createTestUser(t, authService, "user", "password123", false)
	adminToken := createTestToken(t, cfg, authService, admin)
	userToken := createTestToken(t, cfg, authService, user)

	t.Run("GET /api/admin/users - Success with admin", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/admin/users", adminToken, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Users []models.User `json:"users"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Users, 2)
	})

	t.Run("GET /api/admin/users - Forbidden for regular user", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/admin/users", userToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("GET /api/admin/records - Sees all users' records", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/records", userToken, gin.H{"date": "2024-06-09"})
		require.Equal(t, http.StatusCreated, w.Code)
		w = doJSON(router, "POST", "/api/records", adminToken, gin.H{"date": "2024-06-09"})
		require.Equal(t, http.StatusCreated, w.Code)

		w = doJSON(router, "GET", "/api/admin/records", adminToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Records []models.MedicationRecord `json:"records"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Records, 2)
	})

	t.Run("GET /api/admin/records - Forbidden for regular user", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/admin/records", userToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("PUT /api/admin/users/:id - Grant admin", func(t *testing.T) {
		w := doJSON(router, "PUT", fmt.Sprintf("/api/admin/users/%d", user.ID), adminToken, gin.H{
			"is_admin": true,
		})

		assert.Equal(t, http.StatusOK, w.Code)
		var updated models.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
		assert.True(t, updated.IsAdmin)
		assert.True(t, updated.IsActive) // untouched

		// revert for the remaining subtests
		w = doJSON(router, "PUT", fmt.Sprintf("/api/admin/users/%d", user.ID), adminToken, gin.H{
			"is_admin": false,
		})
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("PUT /api/admin/users/:id - Deactivation revokes sessions", func(t *testing.T) {
		w := doJSON(router, "PUT", fmt.Sprintf("/api/admin/users/%d", user.ID), adminToken, gin.H{
			"is_active": false,
		})
		assert.Equal(t, http.StatusOK, w.Code)

		// the previously issued token no longer resolves
		w = doJSON(router, "GET", "/api/auth/me", userToken, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("PUT /api/admin/users/:id - Not found", func(t *testing.T) {
		w := doJSON(router, "PUT", "/api/admin/users/99999", adminToken, gin.H{
			"is_active": false,
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("PUT /api/admin/users/:id - Forbidden for regular user", func(t *testing.T) {
		// re-activate first so the user token resolves again
		w := doJSON(router, "PUT", fmt.Sprintf("/api/admin/users/%d", user.ID), adminToken, gin.H{
			"is_active": true,
		})
		require.Equal(t, http.StatusOK, w.Code)
		freshToken := createTestToken(t, cfg, authService, user)

		w = doJSON(router, "PUT", fmt.Sprintf("/api/admin/users/%d", admin.ID), freshToken, gin.H{
			"is_admin": false,
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
