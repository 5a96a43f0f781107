package task

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emredeveloper/invoice-ai-extractor/internal/extraction"
	"github.com/emredeveloper/invoice-ai-extractor/internal/provider"
)

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"parse error", fmt.Errorf("%w: unexpected token", extraction.ErrParse), false},
		{"missing file", fmt.Errorf("stat input file: %w", os.ErrNotExist), false},
		{"transient provider error", &provider.Error{Kind: provider.KindTransient, Status: 429}, true},
		{"permanent provider error", &provider.Error{Kind: provider.KindPermanent, Status: 400}, false},
		{"rate limit text", errors.New("rate limit reached, try again later"), true},
		{"plain error", errors.New("something else entirely"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Retryable(tc.err))
		})
	}
}
