package share

import (
	"encoding/json"
	"fmt"
	"strings"

	"backboard/internal/domain"
)

// Token prefixes identify the scheme that produced a token. Tokens with no
// recognised prefix predate the tags and are treated as fallback-encoded.
const (
	primaryTag  = "lz_"
	fallbackTag = "b64_"
)

var (
	primary  Compressor = deflateCompressor{}
	fallback Compressor = base64Compressor{}
)

// Encode sanitizes every config embedded in state and serialises it to a
// compact URL-safe token. The primary compression scheme is attempted first;
// if it errors or produces an empty payload, the fallback scheme is used.
// Encode fails only when the state cannot be marshalled to JSON (NaN inputs
// and the like).
func Encode(state *domain.ShareableState) (string, error) {
	text, err := json.Marshal(state.Sanitized())
	if err != nil {
		return "", fmt.Errorf("marshalling state: %w", err)
	}

	if payload, err := primary.Compress(string(text)); err == nil && payload != "" {
		return primaryTag + payload, nil
	}

	payload, err := fallback.Compress(string(text))
	if err != nil {
		return "", fmt.Errorf("fallback encoding: %w", err)
	}
	return fallbackTag + payload, nil
}

// Decode rebuilds a ShareableState from a token. It never panics and returns
// nil on any malformed, truncated, or unrecognised input: the caller must
// treat nil as "nothing to restore", not as an error.
func Decode(token string) *domain.ShareableState {
	if token == "" {
		return nil
	}

	var text string
	switch {
	case strings.HasPrefix(token, primaryTag):
		payload := strings.TrimPrefix(token, primaryTag)
		t, err := primary.Decompress(payload)
		if err != nil {
			// Exceptional environments have produced primary-tagged
			// tokens carrying fallback payloads; retry before giving up.
			if t, err = fallback.Decompress(payload); err != nil {
				return nil
			}
		}
		text = t
	case strings.HasPrefix(token, fallbackTag):
		t, err := fallback.Decompress(strings.TrimPrefix(token, fallbackTag))
		if err != nil {
			return nil
		}
		text = t
	default:
		// Legacy token with no prefix.
		t, err := fallback.Decompress(token)
		if err != nil {
			return nil
		}
		text = t
	}

	var state domain.ShareableState
	if err := json.Unmarshal([]byte(text), &state); err != nil {
		return nil
	}
	if err := state.Validate(); err != nil {
		return nil
	}
	return &state
}
