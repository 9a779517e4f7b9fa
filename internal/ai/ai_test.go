package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolfix/service-desk/internal/config"
	"github.com/coolfix/service-desk/internal/observability"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		err   error
	}{
		{"bare", `{"a":1}`, `{"a":1}`, nil},
		{"prose around", "Sure! Here you go:\n{\"a\": {\"b\": 2}}\nHope that helps {x}", `{"a": {"b": 2}}`, nil},
		{"brace in string", `{"text": "a } brace", "n": 1} trailing`, `{"text": "a } brace", "n": 1}`, nil},
		{"escaped quote", `{"text": "say \"}\" now"}`, `{"text": "say \"}\" now"}`, nil},
		{"none", "no json here", "", ErrNoJSON},
		{"unbalanced", `{"a": 1`, "", ErrNoJSON},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tc.input)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeReplyRejectsInvalidJSON(t *testing.T) {
	var v map[string]any
	err := DecodeReply(`here {"a": tru}`, &v)
	require.Error(t, err)
}

func TestAnthropicClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "system blob", req.System)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "classify this", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"ok\":true}"}]}`))
	}))
	defer srv.Close()

	client := NewAnthropicClient(config.AIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "m"})
	out, err := client.Generate(context.Background(), "classify this", "system blob")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
}

func TestAnthropicClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit","message":"slow down"}}`))
	}))
	defer srv.Close()

	client := NewAnthropicClient(config.AIConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := client.Generate(context.Background(), "p", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNewAnthropicClientWithoutKeyIsDisabled(t *testing.T) {
	client := NewAnthropicClient(config.AIConfig{})
	_, err := client.Generate(context.Background(), "p", "")
	require.ErrorIs(t, err, ErrDisabled)
}

func TestWithDeadlineCancelsSlowCalls(t *testing.T) {
	slow := GeneratorFunc(func(ctx context.Context, _, _ string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "late", nil
		}
	})
	g := WithDeadline(slow, "m", 20*time.Millisecond, observability.NewMetrics(), nil)
	_, err := g.Generate(context.Background(), "p", "")
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}
