// Package testutil provides shared testing helpers.
package testutil

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ekrich/spark/pkg/config"
	"github.com/ekrich/spark/pkg/errors"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// Configs builds a config source with the given overrides. Keys not
// overridden resolve to the pipeline defaults.
func Configs(overrides map[string]string) config.Static {
	src := config.Defaults()
	for k, v := range overrides {
		src[k] = v
	}
	return src
}

// RequireCode fails the test immediately unless err carries the given
// pipeline error code.
func RequireCode(t *testing.T, err error, code errors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if got := errors.CodeOf(err); got != code {
		t.Fatalf("expected error code %s, got %s (%v)", code, got, err)
	}
}

// RequireDetail fails the test unless err carries the detail key with
// the given value.
func RequireDetail(t *testing.T, err error, key string, want interface{}) {
	t.Helper()
	got, ok := errors.Detail(err, key)
	if !ok {
		t.Fatalf("error is missing detail %q: %v", key, err)
	}
	if got != want {
		t.Fatalf("detail %q: expected %v, got %v", key, want, got)
	}
}
