package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransientStructuredError(t *testing.T) {
	transient := &Error{Kind: KindTransient, Provider: "hosted", Status: 503}
	permanent := &Error{Kind: KindPermanent, Provider: "hosted", Status: 400}

	assert.True(t, IsTransient(transient))
	assert.False(t, IsTransient(permanent))
	assert.True(t, IsTransient(fmt.Errorf("call failed: %w", transient)))
}

func TestIsTransientDeadline(t *testing.T) {
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("provider: %w", context.DeadlineExceeded)))
}

func TestIsTransientMarkers(t *testing.T) {
	cases := []struct {
		msg       string
		transient bool
	}{
		{"received 429 from upstream", true},
		{"You exceeded your current quota", true},
		{"Rate limit reached for requests", true},
		{"request timed out", true},
		{"read tcp: connection reset by peer", true},
		{"dial tcp: connection refused", true},
		{"the service is temporarily unavailable", true},
		{"invalid api key", false},
		{"file does not exist", false},
	}

	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			assert.Equal(t, tc.transient, IsTransient(errors.New(tc.msg)))
		})
	}
}

func TestIsTransientNil(t *testing.T) {
	assert.False(t, IsTransient(nil))
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, KindTransient, classifyStatus(429))
	assert.Equal(t, KindTransient, classifyStatus(500))
	assert.Equal(t, KindTransient, classifyStatus(503))
	assert.Equal(t, KindPermanent, classifyStatus(400))
	assert.Equal(t, KindPermanent, classifyStatus(401))
	assert.Equal(t, KindPermanent, classifyStatus(404))
}

func TestErrorMessageFormat(t *testing.T) {
	withStatus := &Error{Kind: KindTransient, Provider: "hosted", Status: 429, Message: "too many requests"}
	assert.Equal(t, "hosted provider: status 429: too many requests", withStatus.Error())

	withoutStatus := &Error{Kind: KindPermanent, Provider: "local", Message: "empty completion response"}
	assert.Equal(t, "local provider: empty completion response", withoutStatus.Error())
}
