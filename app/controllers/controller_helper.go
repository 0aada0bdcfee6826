package controllers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/agenciohq/agencio/internal/pkg/cache"
)

// cacheClaims adapts the redis cache to the idempotency guard's claim store.
type cacheClaims struct{}

func (cacheClaims) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return cache.GetClient().SetNX(ctx, key, value, expiration).Result()
}

func (cacheClaims) Delete(ctx context.Context, key string) error {
	return cache.GetClient().Del(ctx, key).Err()
}

// parsePagination reads offset/limit query parameters with sane bounds.
func parsePagination(c *fiber.Ctx) (int, int) {
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return offset, limit
}
