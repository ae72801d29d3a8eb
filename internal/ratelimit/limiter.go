// Package ratelimit throttles login and sign-up attempts.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock lets tests control time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	LoginMaxAttempts  int           // failures per email before lockout
	LoginLockout      time.Duration // how long a locked email stays locked
	LoginMaxIPPerHour int           // failures per IP per hour

	RegisterMaxIPPerHour int

	Clock Clock
}

func DefaultConfig() *Config {
	return &Config{
		LoginMaxAttempts:     5,
		LoginLockout:         15 * time.Minute,
		LoginMaxIPPerHour:    50,
		RegisterMaxIPPerHour: 10,
	}
}

type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string
}

type entry struct {
	count    int
	firstAt  time.Time
	lastAt   time.Time
	lockedAt time.Time
}

type Limiter struct {
	config *Config
	clock  Clock
	mu     sync.RWMutex

	loginByEmail map[string]*entry
	loginByIP    map[string]*entry
	registerByIP map[string]*entry

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		loginByEmail:  make(map[string]*entry),
		loginByIP:     make(map[string]*entry),
		registerByIP:  make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// CheckLogin reports whether a login attempt may proceed. It records nothing.
func (l *Limiter) CheckLogin(email, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	emailKey := l.hashKey("login:email:", normalizeEmail(email))
	ipKey := l.hashKey("login:ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if e := l.loginByEmail[emailKey]; e != nil && !e.lockedAt.IsZero() {
		elapsed := now.Sub(e.lockedAt)
		if elapsed < l.config.LoginLockout {
			return LimitResult{
				Allowed:    false,
				RetryAfter: l.config.LoginLockout - elapsed,
				Reason:     "lockout",
			}
		}
	}

	if e := l.loginByIP[ipKey]; e != nil {
		if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.LoginMaxIPPerHour {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Hour - now.Sub(e.firstAt),
				Reason:     "ip_hourly_limit",
			}
		}
	}

	return LimitResult{Allowed: true}
}

// RecordLoginFailure counts a failed password check. It returns true when
// this failure locked the email.
func (l *Limiter) RecordLoginFailure(email, ip string) (lockedOut bool) {
	now := l.clock.Now()
	emailKey := l.hashKey("login:email:", normalizeEmail(email))
	ipKey := l.hashKey("login:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.loginByEmail[emailKey]
	switch {
	case e == nil:
		e = &entry{count: 1, firstAt: now, lastAt: now}
		l.loginByEmail[emailKey] = e
	case !e.lockedAt.IsZero() && now.Sub(e.lockedAt) >= l.config.LoginLockout:
		e = &entry{count: 1, firstAt: now, lastAt: now}
		l.loginByEmail[emailKey] = e
	default:
		e.count++
		e.lastAt = now
	}
	if e.count >= l.config.LoginMaxAttempts && e.lockedAt.IsZero() {
		e.lockedAt = now
		lockedOut = true
	}

	bumpHourly(l.loginByIP, ipKey, now)
	return lockedOut
}

// ResetLogin clears the failure count after a successful login.
func (l *Limiter) ResetLogin(email string) {
	emailKey := l.hashKey("login:email:", normalizeEmail(email))
	l.mu.Lock()
	delete(l.loginByEmail, emailKey)
	l.mu.Unlock()
}

// CheckRegister limits account creation per client IP.
func (l *Limiter) CheckRegister(ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	ipKey := l.hashKey("register:ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if e := l.registerByIP[ipKey]; e != nil {
		if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.RegisterMaxIPPerHour {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Hour - now.Sub(e.firstAt),
				Reason:     "ip_hourly_limit",
			}
		}
	}
	return LimitResult{Allowed: true}
}

func (l *Limiter) RecordRegister(ip string) {
	now := l.clock.Now()
	ipKey := l.hashKey("register:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()
	bumpHourly(l.registerByIP, ipKey, now)
}

func bumpHourly(m map[string]*entry, key string, now time.Time) {
	e := m[key]
	if e == nil || now.Sub(e.firstAt) >= time.Hour {
		m[key] = &entry{count: 1, firstAt: now, lastAt: now}
		return
	}
	e.count++
	e.lastAt = now
}

func (l *Limiter) hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	maxAge := l.config.LoginLockout + time.Hour
	for k, e := range l.loginByEmail {
		if now.Sub(e.lastAt) > maxAge {
			delete(l.loginByEmail, k)
		}
	}
	for _, m := range []map[string]*entry{l.loginByIP, l.registerByIP} {
		for k, e := range m {
			if now.Sub(e.lastAt) > time.Hour {
				delete(m, k)
			}
		}
	}
}

// GetClientIP extracts the client IP from a request.
// With trustProxy it takes the rightmost public address from X-Forwarded-For;
// without it forwarded headers are ignored.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(parts[i])
				if ip != "" && !isPrivateIP(ip) {
					return ip
				}
			}
			return strings.TrimSpace(parts[len(parts)-1])
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if parsed := net.ParseIP(r.RemoteAddr); parsed != nil {
			return r.RemoteAddr
		}
		if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
			candidate := r.RemoteAddr[:idx]
			if net.ParseIP(candidate) != nil {
				return candidate
			}
		}
		return r.RemoteAddr
	}
	return ip
}

var privateNetworks []*net.IPNet

func init() {
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	}
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid private CIDR: " + cidr)
		}
		privateNetworks = append(privateNetworks, network)
	}
}

func isPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// MaskEmail keeps the first two characters of the local part for logs.
func MaskEmail(email string) string {
	email = normalizeEmail(email)
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}

func LogRateLimitExceeded(limitType, email, ip, reason string) {
	log.Warn().
		Str("event", "rate_limit_exceeded").
		Str("type", limitType).
		Str("email", MaskEmail(email)).
		Str("ip", ip).
		Str("reason", reason).
		Msg("Auth rate limit exceeded")
}
