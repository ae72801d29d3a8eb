package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/api/apiutil"
	"github.com/codr1/oche/internal/api/authz"
	"github.com/codr1/oche/internal/config"
	"github.com/codr1/oche/internal/ratelimit"
	"github.com/codr1/oche/internal/store"
)

const (
	authQueryTimeout  = 5 * time.Second
	minPasswordLength = 8
	maxNameLength     = 100
)

var (
	queries   *store.Queries
	appConfig *config.Config
	limiter   *ratelimit.Limiter
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User      store.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *store.Queries, cfg *config.Config) {
	queries = q
	appConfig = cfg

	limits := ratelimit.DefaultConfig()
	if cfg != nil {
		if cfg.Auth.LoginMaxAttempts > 0 {
			limits.LoginMaxAttempts = cfg.Auth.LoginMaxAttempts
		}
		if cfg.Auth.LoginLockout > 0 {
			limits.LoginLockout = cfg.Auth.LoginLockout
		}
	}
	if limiter != nil {
		limiter.Close()
	}
	limiter = ratelimit.New(limits)
}

func trustProxy() bool {
	return appConfig != nil && appConfig.Auth.TrustProxy
}

// POST /api/v1/auth/register
func HandleRegister(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil || limiter == nil {
		logger.Error().Msg("Auth handlers not initialized")
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	ip := ratelimit.GetClientIP(r, trustProxy())
	if result := limiter.CheckRegister(ip); !result.Allowed {
		ratelimit.LogRateLimitExceeded("register", "", ip, result.Reason)
		writeRetryAfter(w, result.RetryAfter)
		apiutil.WriteErrorMessage(w, http.StatusTooManyRequests, "Too many sign-ups, try again later")
		return
	}

	var req registerRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	email, name, err := validateRegistration(req)
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to hash password")
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	user, err := queries.CreateUser(ctx, store.CreateUserParams{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         authz.RolePlayer,
	})
	if err != nil {
		if apiutil.IsUniqueViolation(err) {
			apiutil.WriteErrorMessage(w, http.StatusConflict, "An account with this email already exists")
			return
		}
		logger.Error().Err(err).Msg("Failed to create user")
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Failed to create account")
		return
	}
	limiter.RecordRegister(ip)

	logger.Info().Int64("user_id", user.ID).Msg("Player registered")
	writeSession(w, r, user, http.StatusCreated)
}

// POST /api/v1/auth/login
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil || limiter == nil {
		logger.Error().Msg("Auth handlers not initialized")
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req loginRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	ip := ratelimit.GetClientIP(r, trustProxy())
	if result := limiter.CheckLogin(email, ip); !result.Allowed {
		ratelimit.LogRateLimitExceeded("login", email, ip, result.Reason)
		writeRetryAfter(w, result.RetryAfter)
		apiutil.WriteErrorMessage(w, http.StatusTooManyRequests, "Too many login attempts, try again later")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	user, err := queries.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.Error().Err(err).Msg("Failed to load user for login")
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Failed to log in")
		return
	}
	if err != nil || !VerifyPassword(user.PasswordHash, req.Password) {
		if limiter.RecordLoginFailure(email, ip) {
			logger.Warn().Str("email", ratelimit.MaskEmail(email)).Msg("Login locked after repeated failures")
		}
		apiutil.WriteErrorMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	limiter.ResetLogin(email)

	writeSession(w, r, user, http.StatusOK)
}

// POST /api/v1/auth/logout
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/auth/me
func HandleMe(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	authUser, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	user, err := queries.GetUserByID(ctx, authUser.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteErrorMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		logger.Error().Err(err).Int64("user_id", authUser.ID).Msg("Failed to load current user")
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Failed to load user")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, user); err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to write user response")
	}
}

func writeSession(w http.ResponseWriter, r *http.Request, user store.User, status int) {
	logger := log.Ctx(r.Context())

	token, expiresAt, err := IssueToken(user, time.Now())
	if err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to issue token")
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Failed to start session")
		return
	}
	SetAuthCookie(w, token, expiresAt)

	if err := apiutil.WriteJSON(w, status, authResponse{User: user, Token: token, ExpiresAt: expiresAt}); err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to write auth response")
	}
}

func writeRetryAfter(w http.ResponseWriter, d time.Duration) {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
}

func validateRegistration(req registerRequest) (string, string, error) {
	email := strings.TrimSpace(req.Email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", "", apiutil.FieldError{Field: "email", Reason: "must be a valid email address"}
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", "", apiutil.FieldError{Field: "name", Reason: "is required"}
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", "", apiutil.FieldError{Field: "name", Reason: "is too long"}
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return "", "", apiutil.FieldError{Field: "password", Reason: "must be at least 8 characters"}
	}
	return strings.ToLower(email), name, nil
}
