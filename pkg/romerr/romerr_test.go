package romerr

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "configuration", err: Configf("fold fraction %v", 1.5), want: "configuration"},
		{name: "io", err: IO("open", "/missing", os.ErrNotExist), want: "io"},
		{name: "backend", err: Backendf("fold %d", 3), want: "backend"},
		{name: "wrapped backend", err: fmt.Errorf("dispatch: %w", Backendf("fold %d", 3)), want: "backend"},
		{name: "plain", err: errors.New("boom"), want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIO_KeepsCause(t *testing.T) {
	err := IO("open", "/missing", os.ErrNotExist)
	if !errors.Is(err, ErrIO) {
		t.Error("expected ErrIO in chain")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("expected os.ErrNotExist in chain")
	}
}
