package providergroups

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
)

func newTestRouter(svc *Service, p *access.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextPrincipal, p) })
	r.GET("/groups/:id", h.Get)
	r.POST("/groups", h.Action)
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/groups", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestActionDispatch(t *testing.T) {
	store := newFakeStore()
	cust := uuid.New()
	r := newTestRouter(NewService(store, zap.NewNop()), customerAdmin(cust))

	w := post(r, `{"intent":"create","name":"Cardiology"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect_to":"/admin/provider-groups"`)

	w = post(r, `{"intent":"create","name":"Cardiology"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), msgNameTaken)
	assert.Contains(t, w.Body.String(), `"values":{"name":"Cardiology"`)

	w = post(r, `{"intent":"archive"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Unknown intent")

	w = post(r, `{"name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Intent is required")
}

func TestGetHidesOtherCustomer(t *testing.T) {
	store := newFakeStore()
	g := store.addGroup(uuid.New(), "Theirs")
	r := newTestRouter(NewService(store, zap.NewNop()), customerAdmin(uuid.New()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/groups/"+g.ID.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/groups/not-a-uuid", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
