package auth

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/chplink/internal/testutil/testlog"
)

func TestStaticToken(t *testing.T) {
	testlog.Start(t)
	v := StaticToken{Token: "s3cret"}
	if err := v.Validate("s3cret"); err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if err := v.Validate("nope"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := (StaticToken{}).Validate(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty static token must reject")
	}
}

func TestFromConfig(t *testing.T) {
	testlog.Start(t)
	if err := FromConfig("  ").Validate(""); err != nil {
		t.Fatalf("no token configured should allow all: %v", err)
	}
	if err := FromConfig("abc").Validate(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("configured token should be required")
	}
}

func TestRequestToken(t *testing.T) {
	testlog.Start(t)
	r := httptest.NewRequest("POST", "/send", nil)
	r.Header.Set("Authorization", "Bearer abc ")
	if got := RequestToken(r); got != "abc" {
		t.Fatalf("bearer token got=%q", got)
	}

	r = httptest.NewRequest("POST", "/send", nil)
	r.Header.Set(HeaderToken, "xyz")
	if got := RequestToken(r); got != "xyz" {
		t.Fatalf("header token got=%q", got)
	}

	r = httptest.NewRequest("POST", "/send", nil)
	r.Header.Set("Authorization", "Basic Zm9v")
	if got := RequestToken(r); got != "" {
		t.Fatalf("basic auth should not count, got=%q", got)
	}
}
