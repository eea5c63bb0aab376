package gateway

import (
	"crypto/subtle"
	"net"
	"os"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/soyeahso/crewbuilder/internal/config"
)

// Environment fallbacks for gateway secrets left empty in config.
const (
	envGatewayToken    = "CREWBUILDER_GATEWAY_TOKEN"
	envGatewayPassword = "CREWBUILDER_GATEWAY_PASSWORD"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // "token" | "password" | "none"
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth is the gateway auth config with environment fallbacks applied.
type ResolvedAuth struct {
	Mode     string
	Token    string
	Password string
}

// ResolveAuth fills empty secrets from the environment. Without an explicit
// mode, a password selects password auth and anything else token auth.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{
		Mode:     cfg.Mode,
		Token:    firstNonEmpty(cfg.Token, os.Getenv(envGatewayToken)),
		Password: firstNonEmpty(cfg.Password, os.Getenv(envGatewayPassword)),
	}
	if auth.Mode == "" {
		auth.Mode = "token"
		if auth.Password != "" {
			auth.Mode = "password"
		}
	}
	return auth
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Authorize checks the credentials of a connect request.
func Authorize(serverAuth ResolvedAuth, clientAuth *ConnectAuth) AuthResult {
	if serverAuth.Mode == "none" {
		return AuthResult{OK: true, Method: "none"}
	}
	if clientAuth == nil {
		return AuthResult{Reason: "no credentials provided"}
	}

	var want, got string
	switch serverAuth.Mode {
	case "token":
		want, got = serverAuth.Token, clientAuth.Token
	case "password":
		want, got = serverAuth.Password, clientAuth.Password
	default:
		return AuthResult{Reason: "unknown auth mode: " + serverAuth.Mode}
	}

	switch {
	case want == "":
		return AuthResult{Reason: "server " + serverAuth.Mode + " not configured"}
	case got == "":
		return AuthResult{Reason: serverAuth.Mode + " required"}
	case !safeEqual(got, want):
		return AuthResult{Reason: serverAuth.Mode + "_mismatch"}
	}
	return AuthResult{OK: true, Method: serverAuth.Mode}
}

// safeEqual compares in constant time, including when lengths differ.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

// authRateLimiter counts failed handshakes per client IP. A counter expires
// one window after the IP's latest failure.
type authRateLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	failures *gocache.Cache
}

func newAuthRateLimiter(window time.Duration) *authRateLimiter {
	return &authRateLimiter{
		window:   window,
		failures: gocache.New(window, time.Minute),
	}
}

func clientHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
		return host
	}
	return remoteAddr
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	n, ok := l.failures.Get(clientHost(remoteAddr))
	return !ok || n.(int) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := clientHost(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	if v, ok := l.failures.Get(host); ok {
		n = v.(int)
	} else if l.failures.ItemCount() >= authRateMaxIPs {
		l.failures.DeleteExpired()
		if l.failures.ItemCount() >= authRateMaxIPs {
			l.evictOldest()
		}
	}
	l.failures.Set(host, n+1, l.window)
}

// evictOldest drops the counter closest to expiry. Caller holds mu.
func (l *authRateLimiter) evictOldest() {
	var (
		oldest  string
		expires int64
	)
	for host, item := range l.failures.Items() {
		if oldest == "" || item.Expiration < expires {
			oldest, expires = host, item.Expiration
		}
	}
	if oldest != "" {
		l.failures.Delete(oldest)
	}
}
