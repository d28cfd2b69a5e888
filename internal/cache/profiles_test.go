package cache

import (
	"testing"
	"time"

	"github.com/geocoder89/accounthub/internal/domain/user"
)

func TestProfilesHitAndInvalidate(t *testing.T) {
	c := NewProfiles(time.Minute)

	c.Set("u1", user.Profile{ID: "u1", Email: "jane@example.com"})

	got, ok := c.Get("u1")
	if !ok || got.Email != "jane@example.com" {
		t.Fatalf("got %+v ok=%v", got, ok)
	}

	c.Invalidate("u1")

	if _, ok := c.Get("u1"); ok {
		t.Fatal("entry survived invalidation")
	}
}

func TestProfilesExpiry(t *testing.T) {
	c := NewProfiles(10 * time.Millisecond)

	c.Set("u1", user.Profile{ID: "u1"})

	time.Sleep(25 * time.Millisecond)

	if _, ok := c.Get("u1"); ok {
		t.Fatal("entry outlived its ttl")
	}
}

func TestProfilesMissingKey(t *testing.T) {
	c := NewProfiles(time.Minute)

	if _, ok := c.Get("nope"); ok {
		t.Fatal("hit on empty cache")
	}
}
