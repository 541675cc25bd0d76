package logger_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LazyCorpz/Signal-Server/pkg/logger"
)

func TestError(t *testing.T) {
	t.Parallel()
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestStringAttrs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		fn   func(string) slog.Attr
		key  string
	}{
		{"limiter", logger.Limiter, "limiter"},
		{"key", logger.Key, "key"},
		{"request id", logger.RequestID, "request_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := tt.fn("value")
			assert.Equal(t, tt.key, attr.Key)
			assert.Equal(t, "value", attr.Value.String())
			assert.True(t, tt.fn("").Equal(slog.Attr{}))
		})
	}
}

func TestNumericAttrs(t *testing.T) {
	t.Parallel()
	assert.Equal(t, int64(5), logger.Amount(5).Value.Int64())
	assert.Equal(t, 3*time.Millisecond, logger.RetryAfter(3*time.Millisecond).Value.Duration())
	assert.Equal(t, "duration", logger.Duration(time.Second).Key)
}

func TestEmptyAttrsAreDropped(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	log.Info("check", logger.Limiter("messages"), logger.Error(nil), logger.Key(""))

	out := buf.String()
	assert.Contains(t, out, "limiter=messages")
	assert.False(t, strings.Contains(out, "error="))
	assert.False(t, strings.Contains(out, "key="))
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	log := logger.Discard()
	require.NotNil(t, log)
	log.Error("dropped")
}
