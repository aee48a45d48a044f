package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	SetSecret("test-secret")

	r := gin.New()
	r.GET("/me", RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": ActorID(c), "admin": IsAdmin(c)})
	})
	r.GET("/admin", RequireAuthWithRole(RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	r := newTestRouter()
	token, err := GenerateToken("user-7", "rider", time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"user-7","admin":false}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token=garbage", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_ExpiredAndForeignTokens(t *testing.T) {
	r := newTestRouter()

	expired, err := GenerateToken("user-7", RoleAdmin, -time.Minute)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+expired, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	SetSecret("another-secret")
	foreign, err := GenerateToken("user-7", RoleAdmin, time.Hour)
	require.NoError(t, err)
	SetSecret("test-secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+foreign, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthWithRole(t *testing.T) {
	r := newTestRouter()

	rider, err := GenerateToken("user-7", "rider", time.Hour)
	require.NoError(t, err)
	admin, err := GenerateToken("user-1", RoleAdmin, time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin?token="+rider, nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin?token="+admin, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	preflight := func(h http.Handler, origin string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/routes", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		h.ServeHTTP(w, req)
		return w
	}

	open := CORS(nil)(next)
	w := preflight(open, "http://localhost:5173")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)

	w = httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/routes", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	restricted := CORS([]string{"https://admin.example.com"})(next)
	w = preflight(restricted, "https://admin.example.com")
	assert.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	w = preflight(restricted, "https://elsewhere.example.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestTokensNeedASecret(t *testing.T) {
	SetSecret("")
	t.Cleanup(func() { SetSecret("test-secret") })

	_, err := GenerateToken("user-1", RoleAdmin, time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = ValidateToken("anything")
	assert.ErrorIs(t, err, ErrNoSecret)
}
