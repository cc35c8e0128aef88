package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	hash, err := HashSecret("tajne")
	require.NoError(t, err)
	a, err := New("test-secret", hash)
	require.NoError(t, err)
	return a
}

func serve(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, c
}

func TestTokenRoundTrip(t *testing.T) {
	a := newAuthenticator(t)

	token, err := a.GenerateAdminToken(time.Hour)
	require.NoError(t, err)
	sub, err := a.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, AdminSubject, sub)

	expired, err := a.GenerateToken(AdminSubject, -time.Minute)
	require.NoError(t, err)
	_, err = a.ParseToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := New("another-secret", "")
	require.NoError(t, err)
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsNonHMAC(t *testing.T) {
	a := newAuthenticator(t)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": AdminSubject}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.ParseToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewRejectsMalformedHash(t *testing.T) {
	_, err := New("s", "not-a-hash")
	assert.Error(t, err)

	a, err := New("", "")
	require.NoError(t, err)
	token, err := a.GenerateAdminToken(time.Minute)
	require.NoError(t, err)
	_, err = a.ParseToken(token)
	assert.NoError(t, err)
}

func TestAdminMiddleware(t *testing.T) {
	a := newAuthenticator(t)
	adminToken, err := a.GenerateAdminToken(time.Hour)
	require.NoError(t, err)
	userToken, err := a.GenerateToken(uuid.NewString(), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"secret header", map[string]string{AdminSecretHeader: "tajne"}, http.StatusOK},
		{"wrong secret", map[string]string{AdminSecretHeader: "zle"}, http.StatusUnauthorized},
		{"admin token", map[string]string{"Authorization": "Bearer " + adminToken}, http.StatusOK},
		{"user token", map[string]string{"Authorization": "Bearer " + userToken}, http.StatusForbidden},
		{"garbage token", map[string]string{"Authorization": "Bearer abc"}, http.StatusUnauthorized},
		{"basic auth", map[string]string{"Authorization": "Basic abc"}, http.StatusUnauthorized},
		{"no credentials", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/procedures", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec, _ := serve(t, a.AdminMiddleware, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAdminMiddlewareWithoutHash(t *testing.T) {
	a, err := New("test-secret", "")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(AdminSecretHeader, "anything")
	rec, _ := serve(t, a.AdminMiddleware, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserMiddleware(t *testing.T) {
	a := newAuthenticator(t)
	userID := uuid.New()
	token, err := a.GenerateToken(userID.String(), time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, c := serve(t, a.UserMiddleware, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	got, err := GetUserIDFromContext(c)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	rec, c = serve(t, a.UserMiddleware, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	_, err = GetUserIDFromContext(c)
	assert.Error(t, err)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec, _ = serve(t, a.UserMiddleware, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
