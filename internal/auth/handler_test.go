package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
)

func TestLoginHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	u := store.add(t, models.User{Email: "ann@acme.test", Username: "ann", Active: true,
		Roles: []models.Role{models.RoleSystemAdmin}}, "password1")
	h := NewHandler(newService(store), func(*gin.Context) *access.Principal { return nil }, zap.NewNop())
	r := gin.New()
	r.POST("/login", h.Login)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post(`{"login":"ann@acme.test","password":"password1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			Token string          `json:"token"`
			User  json.RawMessage `json:"user"`
			Role  string          `json:"role"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data.Token)
	assert.Equal(t, "system-admin", body.Data.Role)
	assert.Contains(t, string(body.Data.User), u.ID.String())
	assert.NotContains(t, string(body.Data.User), "$2a$")

	w = post(`{"login":"ann"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"password":["This field is required"]`)

	w = post(`{"login":"ann","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
