// Package ratelimit provides per-client request throttling keyed by IP.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxEntries caps the client map so an address scan cannot grow it without
// bound.
const maxEntries = 10000

// Limiter hands out one token bucket per client IP. Client identity honors
// forwarding headers only when the request came through a trusted proxy.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rate    rate.Limit
	burst   int
	idle    time.Duration
	proxies []*net.IPNet
	stop    chan struct{}
}

type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// New builds a limiter allowing r requests per second with the given burst.
// A background sweep drops entries idle for twice the idle interval. proxies
// lists CIDR ranges or bare IPs of trusted reverse proxies; an empty list
// trusts forwarding headers from anyone.
func New(r rate.Limit, burst int, idle time.Duration, proxies []string) *Limiter {
	l := &Limiter{
		clients: make(map[string]*client),
		rate:    r,
		burst:   burst,
		idle:    idle,
		proxies: parseProxies(proxies),
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Close stops the background sweep.
func (l *Limiter) Close() {
	close(l.stop)
}

// Middleware rejects over-limit requests with 429.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(l.clientIP(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *Limiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= maxEntries {
			l.evictOldest()
		}
		c = &client{bucket: rate.NewLimiter(l.rate, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c.bucket.Allow()
}

func (l *Limiter) evictOldest() {
	var oldest string
	var when time.Time
	for ip, c := range l.clients {
		if oldest == "" || c.lastSeen.Before(when) {
			oldest, when = ip, c.lastSeen
		}
	}
	if oldest != "" {
		delete(l.clients, oldest)
	}
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.idle)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-2 * l.idle)
			l.mu.Lock()
			for ip, c := range l.clients {
				if c.lastSeen.Before(cutoff) {
					delete(l.clients, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

// clientIP resolves the client address. X-Forwarded-For holds
// "client, proxy1, proxy2"; the leftmost entry is the original client.
func (l *Limiter) clientIP(r *http.Request) string {
	remote := parseAddr(r.RemoteAddr)

	if len(l.proxies) > 0 && !l.trusted(remote) {
		return remote.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}
	return remote.String()
}

func (l *Limiter) trusted(ip net.IP) bool {
	for _, n := range l.proxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func parseProxies(specs []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, spec := range specs {
		if _, ipnet, err := net.ParseCIDR(spec); err == nil {
			nets = append(nets, ipnet)
			continue
		}
		ip := net.ParseIP(spec)
		if ip == nil {
			continue
		}
		bits := "/32"
		if ip.To4() == nil {
			bits = "/128"
		}
		if _, ipnet, err := net.ParseCIDR(spec + bits); err == nil {
			nets = append(nets, ipnet)
		}
	}
	return nets
}

func parseAddr(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}
