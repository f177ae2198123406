package errx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to the unified AppError type with appropriate status codes.
func WrapRedis(err error) *AppError {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	}

	return New(err, http.StatusBadGateway, RedisErrorMessage)
}

// WrapIndex marks an index-service outage as fatal for the current request.
func WrapIndex(err error) *AppError {
	if err == nil {
		return nil
	}
	return New(fmt.Errorf("%w: %w", ErrIndexUnavailable, err), http.StatusBadGateway, IndexErrorMessage)
}
