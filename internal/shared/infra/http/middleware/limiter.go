package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/davicafu/scoreregistry/pkg/utils"
)

// Limiter decide si una clave puede hacer otra petición.
type Limiter interface {
	Allow(key string) bool
}

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// LimiterPool mantiene un token bucket por clave y olvida las claves que
// llevan más de ttl sin usarse.
type LimiterPool struct {
	mu       sync.Mutex
	m        map[string]*limiterEntry
	rps      rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewLimiterPool crea el pool. Con cleanupPeriod <= 0 no arranca la limpieza.
func NewLimiterPool(rps float64, burst int, ttl, cleanupPeriod time.Duration) *LimiterPool {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	p := &LimiterPool{
		m:      make(map[string]*limiterEntry),
		rps:    rate.Limit(rps),
		burst:  burst,
		ttl:    ttl,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	if cleanupPeriod > 0 {
		go p.cleanupLoop(cleanupPeriod)
	}
	return p
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.m[key]; ok {
		e.lastSeen = p.now()
		return e.l
	}
	l := rate.NewLimiter(p.rps, p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: p.now()}
	return l
}

// Allow indica si la petición actual entra en el límite de la clave.
func (p *LimiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// Shutdown detiene la limpieza.
func (p *LimiterPool) Shutdown() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// purge elimina los limitadores sin uso desde hace más de ttl.
func (p *LimiterPool) purge() {
	cutoff := p.now().Add(-p.ttl)
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
}

func (p *LimiterPool) cleanupLoop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.purge()
		case <-p.stopCh:
			return
		}
	}
}

// RateLimit rechaza con 429 las peticiones que exceden el límite de su clave.
func RateLimit(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(APIKey(c)) {
			utils.SendError(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
