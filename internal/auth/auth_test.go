package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"example.com/officereport/internal/domain"
)

var testConfig = Config{Secret: "secret", Issuer: "office-report"}

func TestIssueAndParseRoundTrip(t *testing.T) {
	token, err := Issue(Claims{Subject: "u-1", Office: "norte", ExpiresAt: time.Now().Add(time.Hour)}, testConfig)
	require.NoError(t, err)

	claims, err := Parse(token, testConfig)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.Subject)
	require.Equal(t, domain.Identity{Office: "norte"}, claims.Identity())
}

func TestParseAdminWithoutOffice(t *testing.T) {
	token, err := Issue(Claims{Subject: "boss", Admin: true, ExpiresAt: time.Now().Add(time.Hour)}, testConfig)
	require.NoError(t, err)

	claims, err := Parse(token, testConfig)
	require.NoError(t, err)
	require.Equal(t, domain.Identity{Admin: true}, claims.Identity())
}

func TestParseRejects(t *testing.T) {
	expired, err := Issue(Claims{Subject: "u", Office: "norte", ExpiresAt: time.Now().Add(-time.Minute)}, testConfig)
	require.NoError(t, err)
	noOffice, err := Issue(Claims{Subject: "u", ExpiresAt: time.Now().Add(time.Hour)}, testConfig)
	require.NoError(t, err)
	otherIssuer, err := Issue(Claims{Subject: "u", Office: "norte", ExpiresAt: time.Now().Add(time.Hour)}, Config{Secret: "secret", Issuer: "elsewhere"})
	require.NoError(t, err)
	wrongKey, err := Issue(Claims{Subject: "u", Office: "norte", ExpiresAt: time.Now().Add(time.Hour)}, Config{Secret: "other", Issuer: testConfig.Issuer})
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u", "office": "norte", "iss": testConfig.Issuer}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"no office":    noOffice,
		"other issuer": otherIssuer,
		"wrong key":    wrongKey,
		"alg none":     noneAlg,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(token, testConfig)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = Parse("  ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestMiddleware(t *testing.T) {
	var seen *Claims
	handler := NewMiddleware(testConfig).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Nil(t, seen)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/records", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"type":"unauthorized","detail":"missing bearer token"}`, rec.Body.String())

	token, err := Issue(Claims{Subject: "u-1", Office: "sur", ExpiresAt: time.Now().Add(time.Hour)}, testConfig)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/records", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, "sur", seen.Office)
}
