package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNewAndWrap(t *testing.T) {
	err := New(ErrCodeFormat, "missing %q attribute", "_metadata")
	if err.Code != ErrCodeFormat || err.Message != `missing "_metadata" attribute` {
		t.Errorf("New() = %+v", err)
	}
	if got, want := err.Error(), `INVALID_FORMAT: missing "_metadata" attribute`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	cause := errors.New("unexpected EOF")
	wrapped := Wrap(ErrCodeColumnCast, cause, "column %q", "px")
	if got, want := wrapped.Error(), `COLUMN_CAST: column "px": unexpected EOF`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if errors.Unwrap(wrapped) != cause || !errors.Is(wrapped, cause) {
		t.Error("wrapped error does not expose its cause")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"matching code", New(ErrCodeInvalidInput, "x"), ErrCodeInvalidInput, true},
		{"other code", New(ErrCodeInvalidInput, "x"), ErrCodeNetwork, false},
		{"outer code", Wrap(ErrCodeNetwork, New(ErrCodeNotFound, "field"), "fetch"), ErrCodeNetwork, true},
		{"cause code", Wrap(ErrCodeNetwork, New(ErrCodeNotFound, "field"), "fetch"), ErrCodeNotFound, true},
		{
			"through fmt wrapping",
			Wrap(ErrCodeInternal, fmt.Errorf("key %q: %w", "c", New(ErrCodeColumnCast, "inner")), "load"),
			ErrCodeColumnCast, true,
		},
		{
			"second of joined",
			errors.Join(New(ErrCodeNotFound, "gone"), fmt.Errorf("t/y: %w", New(ErrCodeColumnCast, "y"))),
			ErrCodeColumnCast, true,
		},
		{"absent from joined", errors.Join(New(ErrCodeNotFound, "a"), New(ErrCodeFormat, "b")), ErrCodeColumnCast, false},
		{"plain error", errors.New("plain"), ErrCodeInvalidInput, false},
		{"nil", nil, ErrCodeInvalidInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCodeAndUserMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    Code
		message string
	}{
		{"structured", New(ErrCodeColumnCast, "column %q", "px"), ErrCodeColumnCast, `column "px"`},
		{"wrapped", fmt.Errorf("load: %w", New(ErrCodeFormat, "no metadata")), ErrCodeFormat, "no metadata"},
		{"plain", errors.New("disk full"), "", "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.code {
				t.Errorf("GetCode() = %q, want %q", got, tt.code)
			}
			if got := UserMessage(tt.err); got != tt.message {
				t.Errorf("UserMessage() = %q, want %q", got, tt.message)
			}
		})
	}
	if GetCode(nil) != "" {
		t.Error("GetCode(nil) should be empty")
	}
}

func TestRateLimitedError(t *testing.T) {
	if got := (&RateLimitedError{RetryAfter: 60}).Error(); got != "rate limited: retry after 60 seconds" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&RateLimitedError{}).Error(); got != "rate limited" {
		t.Errorf("Error() = %q", got)
	}
	if (&RateLimitedError{}).Code() != ErrCodeRateLimited {
		t.Error("Code() should be RATE_LIMITED")
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name string
		err  error
		wait time.Duration
		ok   bool
	}{
		{"direct", &RateLimitedError{RetryAfter: 30}, 30 * time.Second, true},
		{"wrapped", Wrap(ErrCodeNetwork, &RateLimitedError{RetryAfter: 2}, "fetch"), 2 * time.Second, true},
		{"no hint", &RateLimitedError{}, 0, true},
		{"other error", New(ErrCodeNotFound, "field"), 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait, ok := RetryAfter(tt.err)
			if wait != tt.wait || ok != tt.ok {
				t.Errorf("RetryAfter() = (%v, %v), want (%v, %v)", wait, ok, tt.wait, tt.ok)
			}
		})
	}
}
