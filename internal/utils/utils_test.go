package utils

import (
	"errors"
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	s, err := EncodeCursor(at, "abc")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	c, err := DecodeCursor(s)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !c.At.Equal(at) || c.ID != "abc" {
		t.Fatalf("got %+v", c)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	for _, in := range []string{"", "%%%", "e30"} { // e30 is "{}"
		if _, err := DecodeCursor(in); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("DecodeCursor(%q) err = %v, want ErrInvalidCursor", in, err)
		}
	}
}

func TestBuildCatalogCacheKey(t *testing.T) {
	got := BuildCatalogCacheKey("courses", "levelId", " ABC ", "subjectId", "")
	want := "catalog:courses:v1:levelId=abc:subjectId="
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if got := BuildCatalogCacheKey("levels"); got != "catalog:levels:v1" {
		t.Fatalf("got %q", got)
	}
}

func TestIsUUID(t *testing.T) {
	if IsUUID("does-not-exist") {
		t.Fatal("expected false")
	}
	if !IsUUID("6f1c2a3e-0000-4000-8000-000000000001") {
		t.Fatal("expected true")
	}
}
