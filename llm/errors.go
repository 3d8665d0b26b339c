package llm

import (
	"context"
	"errors"
	"net"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"google.golang.org/api/googleapi"
)

// ErrRetriesExhausted is returned when a generation call fails on every
// configured attempt. It is terminal for the turn.
var ErrRetriesExhausted = errors.New("llm: retries exhausted")

// ErrEmptyCompletion is returned when a provider reports success but the
// completion carries no content to parse.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// IsTransient reports whether a provider error is worth retrying.
// Rate limits, overload and server-side failures are transient; invalid
// requests and auth failures are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return oaiErr.StatusCode == 429 || oaiErr.StatusCode >= 500
	}

	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode == 429 || antErr.StatusCode >= 500
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == 429 || gErr.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Parse failures and empty completions on otherwise successful calls
	// are retried too: a second sample frequently produces well-formed
	// output.
	if errors.Is(err, ErrEmptyCompletion) {
		return true
	}
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}
