package gemini

import (
	"context"
	"testing"
	"time"
)

func TestGenerateContentGuards(t *testing.T) {
	t.Parallel()

	var nilGen *Generator
	if _, err := nilGen.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected an error from an uninitialized generator")
	}

	gen := &Generator{}
	if _, err := gen.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected an error without a client")
	}
}

func TestModelOnNilGenerator(t *testing.T) {
	t.Parallel()

	var gen *Generator
	if got := gen.Model(); got != "" {
		t.Fatalf("expected an empty model name, got %q", got)
	}
}

func TestWaitForHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := waitFor(ctx, time.Minute); err == nil {
		t.Fatalf("expected the canceled context error")
	}

	if err := waitFor(ctx, 0); err != nil {
		t.Fatalf("zero duration must not consult the context: %s", err)
	}
}
