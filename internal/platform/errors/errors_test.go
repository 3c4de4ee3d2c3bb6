package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := Wrap(CodeQuery, "get session", stderrors.New("disk I/O error"))

	if !stderrors.Is(err, ErrQuery) {
		t.Fatal("expected query error to match ErrQuery")
	}
	if stderrors.Is(err, ErrSerialization) {
		t.Fatal("expected query error not to match ErrSerialization")
	}
}

func TestErrorIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("load session: %w", Wrap(CodeSerialization, "decode payload", stderrors.New("bad json")))

	if !stderrors.Is(err, ErrSerialization) {
		t.Fatal("expected wrapped serialization error to match")
	}
	if got := GetCode(err); got != CodeSerialization {
		t.Fatalf("GetCode() = %q, want %q", got, CodeSerialization)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(CodeConnection, "open sqlite db", stderrors.New("permission denied"))
	if got, want := err.Error(), "open sqlite db: permission denied"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if got, want := ErrClosed.Error(), "store is closed"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := WrapWithMetadata(CodeQuery, "delete session", map[string]string{"session_id": "abc"}, cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected errors.Is to find cause")
	}
	if err.Metadata["session_id"] != "abc" {
		t.Fatalf("metadata = %v", err.Metadata)
	}
}

func TestGetCodeUnknown(t *testing.T) {
	if got := GetCode(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("GetCode() = %q, want %q", got, CodeUnknown)
	}
}

func TestCodeRetryable(t *testing.T) {
	tests := map[Code]bool{
		CodeQuery:         true,
		CodeConnection:    false,
		CodeSerialization: false,
		CodeClosed:        false,
	}
	for code, want := range tests {
		if got := code.Retryable(); got != want {
			t.Errorf("%s.Retryable() = %t, want %t", code, got, want)
		}
	}
}
