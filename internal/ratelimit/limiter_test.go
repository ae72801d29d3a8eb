package ratelimit

import (
	"net/http"
	"sync"
	"testing"
	"time"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2026, 1, 6, 19, 30, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLoginLockoutAfterMaxFailures(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		LoginMaxAttempts:  3,
		LoginLockout:      10 * time.Minute,
		LoginMaxIPPerHour: 100,
		Clock:             clock,
	})
	defer limiter.Close()

	email := "thrower@example.com"
	ip := "203.0.113.7"

	for i := 0; i < 2; i++ {
		if result := limiter.CheckLogin(email, ip); !result.Allowed {
			t.Fatalf("attempt %d should be allowed, got %s", i+1, result.Reason)
		}
		if limiter.RecordLoginFailure(email, ip) {
			t.Fatalf("attempt %d should not lock out", i+1)
		}
	}
	if !limiter.RecordLoginFailure(email, ip) {
		t.Fatal("third failure should lock out")
	}

	clock.Advance(4 * time.Minute)
	result := limiter.CheckLogin("THROWER@example.com", ip)
	if result.Allowed || result.Reason != "lockout" {
		t.Fatalf("expected lockout, got %+v", result)
	}
	if result.RetryAfter != 6*time.Minute {
		t.Fatalf("expected 6m retry, got %v", result.RetryAfter)
	}

	clock.Advance(6 * time.Minute)
	if result := limiter.CheckLogin(email, ip); !result.Allowed {
		t.Fatalf("expected lockout to expire, got %s", result.Reason)
	}
	if limiter.RecordLoginFailure(email, ip) {
		t.Fatal("first failure after an expired lockout should start a fresh count")
	}
}

func TestResetLoginClearsFailures(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		LoginMaxAttempts:  2,
		LoginLockout:      time.Minute,
		LoginMaxIPPerHour: 100,
		Clock:             clock,
	})
	defer limiter.Close()

	limiter.RecordLoginFailure("a@example.com", "203.0.113.1")
	limiter.ResetLogin("a@example.com")
	if limiter.RecordLoginFailure("a@example.com", "203.0.113.1") {
		t.Fatal("expected reset to clear the failure count")
	}
}

func TestLoginIPLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		LoginMaxAttempts:  100,
		LoginLockout:      time.Minute,
		LoginMaxIPPerHour: 2,
		Clock:             clock,
	})
	defer limiter.Close()

	ip := "203.0.113.9"
	limiter.RecordLoginFailure("one@example.com", ip)
	limiter.RecordLoginFailure("two@example.com", ip)

	result := limiter.CheckLogin("three@example.com", ip)
	if result.Allowed || result.Reason != "ip_hourly_limit" {
		t.Fatalf("expected ip_hourly_limit, got %+v", result)
	}

	clock.Advance(time.Hour)
	if result := limiter.CheckLogin("three@example.com", ip); !result.Allowed {
		t.Fatalf("expected the window to roll over, got %s", result.Reason)
	}
}

func TestRegisterIPLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{RegisterMaxIPPerHour: 1, Clock: clock})
	defer limiter.Close()

	if result := limiter.CheckRegister("203.0.113.4"); !result.Allowed {
		t.Fatalf("first sign-up should be allowed, got %s", result.Reason)
	}
	limiter.RecordRegister("203.0.113.4")
	if result := limiter.CheckRegister("203.0.113.4"); result.Allowed {
		t.Fatal("second sign-up from the same IP should be blocked")
	}
	if result := limiter.CheckRegister("203.0.113.5"); !result.Allowed {
		t.Fatal("other IPs should be unaffected")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trustProxy bool
		expected   string
	}{
		{"rightmost public forwarded address", map[string]string{"X-Forwarded-For": "203.0.113.50, 10.0.0.1"}, "10.0.0.1:12345", true, "203.0.113.50"},
		{"all forwarded private", map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.1"}, "10.0.0.1:12345", true, "10.0.0.1"},
		{"real ip header", map[string]string{"X-Real-IP": "203.0.113.51"}, "10.0.0.1:12345", true, "203.0.113.51"},
		{"untrusted proxy ignores headers", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "192.168.1.100:54321", false, "192.168.1.100"},
		{"remote addr without port", nil, "192.168.1.100", false, "192.168.1.100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r, tt.trustProxy); got != tt.expected {
				t.Fatalf("GetClientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestMaskEmail(t *testing.T) {
	tests := map[string]string{
		"john.doe@example.com":   "jo***@example.com",
		"  JO@Example.com ":      "***@example.com",
		"not-an-email":           "***",
		"Luke.Humphries@Oche.io": "lu***@oche.io",
	}
	for input, want := range tests {
		if got := MaskEmail(input); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	limiter := New(nil)
	defer limiter.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := "player@example.com"
			ip := "203.0.113.20"
			limiter.CheckLogin(email, ip)
			limiter.RecordLoginFailure(email, ip)
			limiter.CheckRegister(ip)
			if i%5 == 0 {
				limiter.ResetLogin(email)
			}
		}(i)
	}
	wg.Wait()
}
