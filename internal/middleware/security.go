package middleware

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"
)

// RateLimit allows max requests per client IP within window. storage may be
// nil for in-process counters.
func RateLimit(max int, window time.Duration, storage fiber.Storage, prefix string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return prefix + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"ok":  false,
				"msg": "too many requests, try again later",
			})
		},
	})
}

const cacheGenerationKey = "cache:generation"

// PublicCache caches successful anonymous GET responses for a fixed TTL.
// The cache key carries a generation that every successful write replaces,
// so a change is visible to the next read instead of after the TTL. When a
// shared storage is configured the generation lives there too, and all
// instances behind it drop their entries together.
type PublicCache struct {
	ttl         time.Duration
	storage     fiber.Storage
	tokenHeader string
	local       atomic.Pointer[string]
}

// NewPublicCache returns a cache for reads not carrying tokenHeader. storage
// may be nil for an in-process cache.
func NewPublicCache(ttl time.Duration, storage fiber.Storage, tokenHeader string) *PublicCache {
	p := &PublicCache{ttl: ttl, storage: storage, tokenHeader: tokenHeader}
	gen := uuid.NewString()
	p.local.Store(&gen)
	return p
}

// Handler serves and fills the cache.
func (p *PublicCache) Handler() fiber.Handler {
	return cache.New(cache.Config{
		Expiration: p.ttl,
		Storage:    p.storage,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() != fiber.MethodGet || strings.TrimSpace(c.Get(p.tokenHeader)) != ""
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return "cache:" + p.generation() + ":" + c.OriginalURL()
		},
	})
}

// Invalidate starts a new generation after any write that succeeded.
func (p *PublicCache) Invalidate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err != nil || !isWrite(c.Method()) || c.Response().StatusCode() >= fiber.StatusBadRequest {
			return err
		}
		p.bump()
		return nil
	}
}

func (p *PublicCache) generation() string {
	if p.storage != nil {
		if raw, err := p.storage.Get(cacheGenerationKey); err == nil && len(raw) > 0 {
			return string(raw)
		}
	}
	return *p.local.Load()
}

func (p *PublicCache) bump() {
	gen := uuid.NewString()
	p.local.Store(&gen)
	if p.storage != nil {
		_ = p.storage.Set(cacheGenerationKey, []byte(gen), 0)
	}
}

func isWrite(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return false
	}
	return true
}
