package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/codr1/oche/internal/api/authz"
	"github.com/codr1/oche/internal/store"
)

const (
	authCookieName = "oche_auth"
	tokenIssuer    = "oche"
)

var errAuthConfigMissing = errors.New("auth configuration missing")

type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func tokenTTL() time.Duration {
	if appConfig == nil || appConfig.Auth.TokenTTL <= 0 {
		return 24 * time.Hour
	}
	return appConfig.Auth.TokenTTL
}

func secretKey() ([]byte, error) {
	if appConfig == nil || appConfig.App.SecretKey == "" {
		return nil, errAuthConfigMissing
	}
	return []byte(appConfig.App.SecretKey), nil
}

// IssueToken signs an HS256 token for user.
func IssueToken(user store.User, now time.Time) (string, time.Time, error) {
	key, err := secretKey()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := now.Add(tokenTTL())
	claims := Claims{
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken verifies signature, issuer and expiry.
func ParseToken(raw string) (*Claims, error) {
	key, err := secretKey()
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return id, nil
}

func isSecureCookie() bool {
	return appConfig == nil || !appConfig.IsDevelopment()
}

func SetAuthCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureCookie(),
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
	})
}

func ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureCookie(),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// UserFromRequest resolves the caller from a bearer token or the auth cookie.
// A request with no token yields a nil user and no error. The role is read
// from the database so demotions apply before the token expires.
func UserFromRequest(r *http.Request) (*authz.AuthUser, error) {
	if r == nil {
		return nil, nil
	}
	raw := tokenFromRequest(r)
	if raw == "" {
		return nil, nil
	}
	claims, err := ParseToken(raw)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	if queries == nil {
		return &authz.AuthUser{ID: userID, Email: claims.Email, Name: claims.Name, Role: claims.Role}, nil
	}
	user, err := queries.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &authz.AuthUser{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}, nil
}
