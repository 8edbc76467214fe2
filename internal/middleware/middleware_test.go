package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/metrics"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func bearer(t *testing.T, user models.UserContext, expiresIn time.Duration) string {
	t.Helper()
	token, err := IssueToken(secret, user, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthenticate(t *testing.T) {
	user := models.UserContext{UserID: uuid.New(), OrganizationID: uuid.New(), Role: models.RoleDoctor}

	var seen models.UserContext
	handler := Authenticate(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", bearer(t, user, time.Hour), http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"expired token", bearer(t, user, -time.Minute), http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	assert.Equal(t, user, seen)
}

func TestAuthenticate_RejectsOtherSecrets(t *testing.T) {
	user := models.UserContext{UserID: uuid.New(), OrganizationID: uuid.New(), Role: models.RoleAdmin}
	token, err := IssueToken([]byte("someone-else"), user, jwt.RegisteredClaims{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	Authenticate(secret)(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Code)
}

func TestAuthenticate_EmptySecretRejectsEverything(t *testing.T) {
	user := models.UserContext{UserID: uuid.New(), Role: models.RoleSuperAdmin}
	token, err := IssueToken([]byte(""), user, jwt.RegisteredClaims{})
	require.NoError(t, err)

	handler := Authenticate(nil)(RequireRole(models.RoleSuperAdmin)(http.HandlerFunc(okHandler)))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/organizations/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Code)
}

func TestTenantID(t *testing.T) {
	own := uuid.New()
	target := uuid.New()

	var resolved uuid.UUID
	handler := TenantID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved, _ = GetOrganizationID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(user models.UserContext, override string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithUser(req.Context(), user))
		if override != "" {
			req.Header.Set(OrganizationHeader, override)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(models.UserContext{UserID: uuid.New(), OrganizationID: own, Role: models.RoleStaff}, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, own, resolved)

	rec = serve(models.UserContext{UserID: uuid.New(), OrganizationID: own, Role: models.RoleAdmin}, target.String())
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(models.UserContext{UserID: uuid.New(), Role: models.RoleSuperAdmin}, target.String())
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, target, resolved)

	rec = serve(models.UserContext{UserID: uuid.New(), Role: models.RoleSuperAdmin}, "not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(models.UserContext{UserID: uuid.New(), Role: models.RoleSuperAdmin}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(models.RoleSuperAdmin)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = req.WithContext(WithUser(context.Background(), models.UserContext{UserID: uuid.New(), Role: models.RoleAdmin}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = req.WithContext(WithUser(context.Background(), models.UserContext{UserID: uuid.New(), Role: models.RoleSuperAdmin}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type gateFunc func(ctx context.Context, orgID uuid.UUID, feature models.Feature) error

func (f gateFunc) RequireFeature(ctx context.Context, orgID uuid.UUID, feature models.Feature) error {
	return f(ctx, orgID, feature)
}

func TestRequireFeature(t *testing.T) {
	orgID := uuid.New()
	serve := func(gate FeatureGate) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), OrganizationIDKey, orgID))
		rec := httptest.NewRecorder()
		RequireFeature(gate, models.FeatureDataBackup)(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)
		return rec
	}

	rec := serve(gateFunc(func(ctx context.Context, id uuid.UUID, feature models.Feature) error {
		assert.Equal(t, orgID, id)
		assert.Equal(t, models.FeatureDataBackup, feature)
		return nil
	}))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(gateFunc(func(context.Context, uuid.UUID, models.Feature) error {
		return &models.FeatureDeniedError{Feature: models.FeatureDataBackup, PlanName: "Basic"}
	}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "feature_not_available", body.Code)
	assert.Equal(t, "Your Basic plan does not include dataBackup", body.Error)

	rec = serve(gateFunc(func(context.Context, uuid.UUID, models.Feature) error {
		return errors.New("db down")
	}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecovery(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeError(t, rec).Code)
}

func TestMetricsAndLogging(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Use(Logging)
	r.Get("/patients/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients/"+uuid.NewString(), nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 2.0, promtest.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/patients/{id}", http.MethodGet, "418")))
}
