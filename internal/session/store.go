// Package session keeps the correlation between a checkout session token and
// the payment intent waiting for the processor's redirect-back.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("checkout session not found")

// Store maps a session token to a payment intent id.
// GetAndDelete must be atomic: at most one caller observes a given entry.
type Store interface {
	Put(ctx context.Context, token, intentID string, ttl time.Duration) error
	GetAndDelete(ctx context.Context, token string) (string, error)
}
