package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/codr1/oche/internal/config"
	"github.com/codr1/oche/internal/store"
)

const testSecret = "test-secret-key-that-is-long-enough-123"

func withTestConfig(t *testing.T) {
	t.Helper()
	prevConfig := appConfig
	prevQueries := queries
	t.Cleanup(func() {
		appConfig = prevConfig
		queries = prevQueries
	})
	appConfig = &config.Config{}
	appConfig.App.SecretKey = testSecret
	appConfig.App.Environment = "development"
	appConfig.Auth.TokenTTL = time.Hour
	queries = nil
}

func TestIssueAndParseToken(t *testing.T) {
	withTestConfig(t)

	user := store.User{ID: 42, Email: "mvg@example.com", Name: "MvG", Role: "admin"}
	token, expiresAt, err := IssueToken(user, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if time.Until(expiresAt) > time.Hour || time.Until(expiresAt) < 59*time.Minute {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	id, err := claims.UserID()
	if err != nil || id != 42 {
		t.Fatalf("expected subject 42, got %d (%v)", id, err)
	}
	if claims.Role != "admin" || claims.Email != "mvg@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	withTestConfig(t)

	token, _, err := IssueToken(store.User{ID: 1, Role: "player"}, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := ParseToken(token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseTokenRejectsWrongKeyAndAlgorithm(t *testing.T) {
	withTestConfig(t)

	claims := Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("some-other-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken(forged); err == nil {
		t.Fatal("expected token signed with another key to fail")
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := ParseToken(unsigned); err == nil {
		t.Fatal("expected alg none to fail")
	}
}

func TestUserFromRequestReadsBearerAndCookie(t *testing.T) {
	withTestConfig(t)

	token, _, err := IssueToken(store.User{ID: 7, Email: "p@example.com", Role: "player"}, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	bearer := httptest.NewRequest(http.MethodGet, "/", nil)
	bearer.Header.Set("Authorization", "Bearer "+token)
	user, err := UserFromRequest(bearer)
	if err != nil || user == nil || user.ID != 7 {
		t.Fatalf("expected user 7 from bearer, got %+v (%v)", user, err)
	}

	cookie := httptest.NewRequest(http.MethodGet, "/", nil)
	cookie.AddCookie(&http.Cookie{Name: authCookieName, Value: token})
	user, err = UserFromRequest(cookie)
	if err != nil || user == nil || user.Role != "player" {
		t.Fatalf("expected player from cookie, got %+v (%v)", user, err)
	}

	anonymous := httptest.NewRequest(http.MethodGet, "/", nil)
	user, err = UserFromRequest(anonymous)
	if err != nil || user != nil {
		t.Fatalf("expected no user, got %+v (%v)", user, err)
	}
}
