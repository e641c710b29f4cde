package requestid

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestNewIsUUID(t *testing.T) {
	id := New()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("id=%q: %v", id, err)
	}
	if id == New() {
		t.Fatalf("ids should differ")
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := With(context.Background(), " abc ")
	if got := FromContext(ctx); got != "abc" {
		t.Fatalf("got=%q", got)
	}
	if got := FromContext(context.Background()); got != "" {
		t.Fatalf("got=%q", got)
	}
}
