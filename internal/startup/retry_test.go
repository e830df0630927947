package startup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func fastRetry() RetryConfig {
	return RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxAttempts: 3}
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.igdb.com"}, true},
		{"wrapped op error", fmt.Errorf("request failed: %w", &net.OpError{Op: "dial", Err: errors.New("refused")}), true},
		{"message", errors.New("Post \"https://id.twitch.tv\": dial tcp: connection refused"), true},
		{"api error", errors.New("IGDB API error: 400 Bad Request"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNetworkError(tt.err))
		})
	}
}

func TestWithRetry_RetriesNetworkErrors(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "catalog check", fastRetry(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: i/o timeout")
		}
		return nil
	}, zerolog.Nop())

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnOtherErrors(t *testing.T) {
	calls := 0
	want := errors.New("invalid client secret")
	err := WithRetry(context.Background(), "catalog check", fastRetry(), func(context.Context) error {
		calls++
		return want
	}, zerolog.Nop())

	assert.ErrorIs(t, err, want)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_GivesUp(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "catalog check", fastRetry(), func(context.Context) error {
		calls++
		return errors.New("no route to host")
	}, zerolog.Nop())

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}
