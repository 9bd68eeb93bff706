package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estaciona/parkops-server/internal/api"
	"github.com/estaciona/parkops-server/internal/apperr"
	"github.com/estaciona/parkops-server/internal/auth"
	"github.com/estaciona/parkops-server/internal/ledger"
	"github.com/estaciona/parkops-server/internal/models"
	"github.com/estaciona/parkops-server/internal/store"
)

const testJWTSecret = "test-secret-key"

// Seeded credentials from the session manager bootstrap.
const (
	AdminEmail       = "admin@estacionamiento.com"
	AdminPassword    = "admin123"
	OperatorEmail    = "operador@estacionamiento.com"
	OperatorPassword = "operador123"
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router        *gin.Engine
	Store         *store.MemoryStore
	Auth          *auth.Manager
	Ledger        *ledger.Service
	AdminToken    string
	OperatorToken string
}

// SetupTestContext creates a new test context with an in-memory store and
// both seeded accounts logged in.
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()

	logger := zap.NewNop()
	kv := store.NewMemoryStore()

	authSvc := auth.NewManager(kv, testJWTSecret, logger)
	require.NoError(t, authSvc.Bootstrap(context.Background()), "failed to bootstrap session manager")

	ledgerSvc := ledger.NewService(kv, logger)
	require.NoError(t, ledgerSvc.Bootstrap(context.Background()), "failed to bootstrap ledger")

	handler := api.NewHandler(authSvc, ledgerSvc, apperr.NewHandler(logger), nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})

	handler.SetupRoutes(router)

	adminToken := login(t, authSvc, AdminEmail, AdminPassword)
	operatorToken := login(t, authSvc, OperatorEmail, OperatorPassword)

	return &TestContext{
		Router:        router,
		Store:         kv,
		Auth:          authSvc,
		Ledger:        ledgerSvc,
		AdminToken:    adminToken,
		OperatorToken: operatorToken,
	}
}

func login(t *testing.T, svc *auth.Manager, email, password string) string {
	t.Helper()

	user, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    email,
		Password: password,
	})
	require.NoError(t, err, "failed to log in %s", email)
	return user.Token
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
