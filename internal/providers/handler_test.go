package providers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/middleware"
	"github.com/provider-portal/backend/internal/models"
)

func newTestRouter(store *fakeStore, p *access.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewService(store, zap.NewNop()), zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextPrincipal, p) })
	r.GET("/providers", h.List)
	r.GET("/providers/:id", h.Get)
	r.POST("/providers", h.Action)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBasicUserReadsAssignedOnly(t *testing.T) {
	store := newFakeStore()
	cust := uuid.New()
	assigned := store.addProvider(cust, nil, npiA)
	other := store.addProvider(cust, nil, npiB)
	p := &access.Principal{UserID: uuid.New(), Roles: []models.Role{models.RoleBasicUser}, CustomerID: &cust, ProviderIDs: []uuid.UUID{assigned.ID}}
	r := newTestRouter(store, p)

	w := do(r, http.MethodGet, "/providers", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), npiA)
	assert.NotContains(t, w.Body.String(), npiB)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/providers/"+assigned.ID.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/providers/"+other.ID.String(), "").Code)

	w = do(r, http.MethodPost, "/providers", `{"intent":"create","npi":"`+npiC+`","name":"Dr C"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, store.providers, 2)
}

func TestCreateReportsFieldErrors(t *testing.T) {
	store := newFakeStore()
	cust := uuid.New()
	store.addProvider(cust, nil, npiA)
	r := newTestRouter(store, customerAdmin(cust))

	w := do(r, http.MethodPost, "/providers", `{"intent":"create","npi":"12345","name":"Dr C"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"npi"`)

	w = do(r, http.MethodPost, "/providers", `{"intent":"create","npi":"`+npiA+`","name":"Dr A2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), msgNPITaken)

	w = do(r, http.MethodPost, "/providers", `{"intent":"create","npi":"`+npiC+`","name":"Dr C"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Provider created successfully")
}
