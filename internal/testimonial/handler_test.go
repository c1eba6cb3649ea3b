package testimonial

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snw-store/internal/auth"
	"snw-store/internal/auth/authtest"
)

type memoryStore struct {
	mu    sync.Mutex
	items []Testimonial
}

func (m *memoryStore) List(_ context.Context, approvedOnly bool) ([]Testimonial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Testimonial, 0)
	for _, t := range m.items {
		if approvedOnly && !t.IsApproved {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memoryStore) Create(_ context.Context, input Input) (Testimonial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := Testimonial{ID: uuid.NewString(), AuthorName: input.AuthorName, Content: input.Content, Rating: input.Rating, IsApproved: input.IsApproved}
	m.items = append(m.items, t)
	return t, nil
}

func (m *memoryStore) Update(_ context.Context, id string, input Input) (Testimonial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.items {
		if t.ID == id {
			t.AuthorName, t.Content, t.Rating, t.IsApproved = input.AuthorName, input.Content, input.Rating, input.IsApproved
			m.items[i] = t
			return t, nil
		}
	}
	return Testimonial{}, ErrNotFound
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.items {
		if t.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type envelope struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Data    []Testimonial `json:"data"`
}

func newServer() (*memoryStore, *authtest.Env, http.Handler) {
	store := &memoryStore{}
	env := authtest.New()
	h := NewHandler(store, env.Guard)

	r := chi.NewRouter()
	r.Mount("/api/testimonials", h.PublicRoutes())
	r.Mount("/api/admin/testimonials", h.AdminRoutes())
	return store, env, r
}

func do(t *testing.T, router http.Handler, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPublicListOnlyShowsApproved(t *testing.T) {
	store, env, router := newServer()
	ctx := context.Background()
	_, err := store.Create(ctx, Input{AuthorName: "Ana", Content: "Amei", Rating: 5, IsApproved: true})
	require.NoError(t, err)
	_, err = store.Create(ctx, Input{AuthorName: "Bia", Content: "Pendente", Rating: 4})
	require.NoError(t, err)

	rec := do(t, router, http.MethodGet, "/api/testimonials", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var public envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &public))
	require.Len(t, public.Data, 1)
	assert.Equal(t, "Ana", public.Data[0].AuthorName)

	rec = do(t, router, http.MethodGet, "/api/admin/testimonials", "", env.Cookie(t, auth.RoleEditor))
	require.Equal(t, http.StatusOK, rec.Code)
	var all envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all.Data, 2)
}

func TestCreateSanitisesAndValidates(t *testing.T) {
	store, env, router := newServer()
	cookie := env.Cookie(t, auth.RoleEditor)

	rec := do(t, router, http.MethodPost, "/api/admin/testimonials",
		`{"authorName":"<b>Caio</b>","content":"<script>alert(1)</script>Chegou rápido","rating":5}`, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, store.items, 1)
	assert.Equal(t, "Caio", store.items[0].AuthorName)
	assert.Equal(t, "Chegou rápido", store.items[0].Content)

	rec = do(t, router, http.MethodPost, "/api/admin/testimonials", `{"authorName":"Caio","content":"ok","rating":6}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/admin/testimonials", `{"authorName":"<i></i>","content":"ok","rating":3}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutesEnforceRoles(t *testing.T) {
	store, env, router := newServer()
	created, err := store.Create(context.Background(), Input{AuthorName: "Ana", Content: "Amei", Rating: 5})
	require.NoError(t, err)

	rec := do(t, router, http.MethodGet, "/api/admin/testimonials", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/admin/testimonials", "", env.Cookie(t, auth.RoleViewer))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, http.MethodDelete, "/api/admin/testimonials/"+created.ID, "", env.Cookie(t, auth.RoleEditor))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, http.MethodDelete, "/api/admin/testimonials/"+created.ID, "", env.Cookie(t, auth.RoleAdmin))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodPut, "/api/admin/testimonials/"+created.ID,
		`{"authorName":"Ana","content":"Amei","rating":5,"isApproved":true}`, env.Cookie(t, auth.RoleAdmin))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
