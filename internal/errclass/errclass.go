// Package errclass maps runtime/provider errors to a small set of
// user-facing categories so the engine can decide whether to retry, pause
// for reauthentication, or surface a terminal failure. Classification is a
// pure function over the error's message and type, never a lookup that can
// itself fail.
package errclass

import (
	"context"
	"errors"
	"strings"
)

// Category is one of a fixed set of error classes the engine understands.
type Category string

const (
	Network        Category = "network"
	Authentication Category = "authentication"
	RateLimit      Category = "rate_limit"
	Timeout        Category = "timeout"
	Interrupted    Category = "interrupted"
	Unknown        Category = "unknown"
)

// Message returns the fixed, localized-ready user message for a category.
func (c Category) Message() string {
	switch c {
	case Network:
		return "Lost connection to the agent runtime. Check your network and try again."
	case Authentication:
		return "Authentication failed. Check your API credentials."
	case RateLimit:
		return "Rate limit reached. The request will be retried automatically."
	case Timeout:
		return "The request timed out."
	case Interrupted:
		return "The turn was interrupted."
	default:
		return "An unexpected error occurred."
	}
}

// Retryable reports whether the engine should apply backoff and retry for
// this category, rather than surfacing a terminal failure immediately.
func (c Category) Retryable() bool {
	switch c {
	case Network, RateLimit, Timeout:
		return true
	default:
		return false
	}
}

// Classify maps err to a Category by inspecting context cancellation first,
// then a fixed lexicon of case-insensitive substrings over the error chain.
// Substring matching is a deliberate concession: the external runtime is a
// black box per its interface contract, so error types it returns are not
// ours to assert on.
func Classify(err error) Category {
	if err == nil {
		return Unknown
	}
	if errors.Is(err, context.Canceled) {
		return Interrupted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "enotfound", "econnrefused", "econnreset", "network", "dns", "socket",
		"connection refused", "unable to connect"):
		return Network
	case containsAny(msg, "401", "403", "api key", "authentication", "unauthorized", "forbidden",
		"invalid key", "invalid_api_key"):
		return Authentication
	case containsAny(msg, "429", "rate limit", "rate_limit", "too many requests", "quota exceeded", "throttl"):
		return RateLimit
	case containsAny(msg, "timeout", "timed out", "etimedout"):
		return Timeout
	case containsAny(msg, "aborterror", "aborted", "cancelled", "canceled"):
		return Interrupted
	default:
		return Unknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
