package models

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// ErrorClass partitions provider failures so callers can decide whether a
// different model is worth trying. Substring matching on error text stays
// inside Classify; nothing outside this file inspects messages.
type ErrorClass int

const (
	// ClassTransient covers overloads, timeouts and empty responses. Another
	// model may well succeed.
	ClassTransient ErrorClass = iota
	// ClassNotFound means the model name does not exist for this account.
	ClassNotFound
	// ClassRateLimited means quota exhaustion on the attempted model.
	ClassRateLimited
	// ClassFatal means no retry can help: bad credentials, invalid request,
	// blocked input.
	ClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNotFound:
		return "not_found"
	case ClassRateLimited:
		return "rate_limited"
	case ClassFatal:
		return "fatal"
	default:
		return "transient"
	}
}

// ErrEmptyResponse is returned when a model call succeeds at the transport
// level but yields no text.
var ErrEmptyResponse = errors.New("empty response from model")

// ConfigError reports a deployment problem such as a missing API key.
// It is always classified fatal.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Reason }

// Classify maps a provider error onto an ErrorClass.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassTransient
	}
	var cfg *ConfigError
	if errors.As(err, &cfg) {
		return ClassFatal
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 404:
			return ClassNotFound
		case 429:
			return ClassRateLimited
		case 400, 401, 403:
			return ClassFatal
		default:
			return ClassTransient
		}
	}
	if errors.Is(err, ErrEmptyResponse) {
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found") || strings.Contains(msg, "404"):
		return ClassNotFound
	case strings.Contains(msg, "429") || strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") || strings.Contains(msg, "resource exhausted"):
		return ClassRateLimited
	case strings.Contains(msg, "api key") || strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "unauthenticated"):
		return ClassFatal
	default:
		return ClassTransient
	}
}

// Attempt records one failed model call inside a cascade run.
type Attempt struct {
	Model string
	Err   error
}

// ExhaustedError is returned when every candidate in the cascade failed.
// The trail preserves attempt order.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for i, a := range e.Attempts {
		label := a.Model
		if i == 0 {
			label = "Primary " + a.Model
		}
		parts = append(parts, fmt.Sprintf("%s: %v", label, a.Err))
	}
	return "model errors: " + strings.Join(parts, " | ")
}
