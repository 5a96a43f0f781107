package task

import (
	"errors"
	"os"

	"github.com/emredeveloper/invoice-ai-extractor/internal/extraction"
	"github.com/emredeveloper/invoice-ai-extractor/internal/provider"
)

// Retryable reports whether a failed attempt is worth repeating. Parse
// failures and missing files are deterministic; provider rate limits,
// timeouts and dropped connections are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, extraction.ErrParse) {
		return false
	}
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	return provider.IsTransient(err)
}
