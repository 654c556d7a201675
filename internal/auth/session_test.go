package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionCreateAndValidate(t *testing.T) {
	manager := NewSessionManager(time.Hour)
	token, expiresAt, err := manager.Create("user-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if token == "" {
		t.Fatal("expected token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatal("expected future expiry")
	}

	userID, _, ok, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !ok || userID != "user-1" {
		t.Fatalf("expected valid session for user-1, got ok=%v user=%q", ok, userID)
	}
}

func TestSessionCreateRequiresUser(t *testing.T) {
	manager := NewSessionManager(time.Hour)
	if _, _, err := manager.Create(""); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
}

func TestSessionValidateUnknownToken(t *testing.T) {
	manager := NewSessionManager(time.Hour)
	if _, _, ok, err := manager.Validate("no-such-token"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if _, _, ok, err := manager.Validate(""); err != nil || ok {
		t.Fatalf("expected miss for empty token, got ok=%v err=%v", ok, err)
	}
}

func TestSessionExpiry(t *testing.T) {
	store := NewMemorySessionStore()
	manager := NewSessionManager(time.Hour, WithStore(store))
	token, _, err := manager.Create("user-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	hashed, err := hashSessionToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	past := time.Now().Add(-time.Minute).UTC()
	if err := store.Save(hashed, "user-1", past, past); err != nil {
		t.Fatalf("backdate session: %v", err)
	}

	if _, _, ok, err := manager.Validate(token); err != nil || ok {
		t.Fatalf("expected expired session to be rejected, got ok=%v err=%v", ok, err)
	}
	// Expired sessions are deleted on validation.
	if _, found, _ := store.Get(hashed); found {
		t.Fatal("expected expired session to be removed from store")
	}
}

func TestSessionIdleRefresh(t *testing.T) {
	store := NewMemorySessionStore()
	manager := NewSessionManager(24*time.Hour, WithStore(store), WithIdleTimeout(time.Hour))
	token, firstExpiry, err := manager.Create("user-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	hashed, err := hashSessionToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	// Age the idle expiry so the next validation must refresh it.
	record, found, _ := store.Get(hashed)
	if !found {
		t.Fatal("expected stored session")
	}
	aged := time.Now().Add(time.Minute).UTC()
	if err := store.Save(hashed, record.UserID, aged, record.AbsoluteExpiresAt); err != nil {
		t.Fatalf("age session: %v", err)
	}

	_, refreshed, ok, err := manager.Validate(token)
	if err != nil || !ok {
		t.Fatalf("validate: ok=%v err=%v", ok, err)
	}
	if !refreshed.After(aged) {
		t.Fatalf("expected refreshed expiry after %v, got %v", aged, refreshed)
	}
	_ = firstExpiry
}

func TestSessionRevoke(t *testing.T) {
	manager := NewSessionManager(time.Hour)
	token, _, err := manager.Create("user-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := manager.Revoke(token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, _, ok, _ := manager.Validate(token); ok {
		t.Fatal("expected revoked session to be invalid")
	}
}

func TestSessionStoreSeesOnlyHashes(t *testing.T) {
	store := NewMemorySessionStore()
	manager := NewSessionManager(time.Hour, WithStore(store))
	token, _, err := manager.Create("user-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, found, _ := store.Get(token); found {
		t.Fatal("raw token must never be a store key")
	}
}

func TestPurgeExpired(t *testing.T) {
	store := NewMemorySessionStore()
	manager := NewSessionManager(time.Hour, WithStore(store))
	past := time.Now().Add(-time.Minute).UTC()
	if err := store.Save("stale-hash", "user-1", past, past); err != nil {
		t.Fatalf("seed stale session: %v", err)
	}
	if err := manager.PurgeExpired(); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, found, _ := store.Get("stale-hash"); found {
		t.Fatal("expected stale session to be purged")
	}
}

func TestSessionManagerPing(t *testing.T) {
	manager := NewSessionManager(time.Hour)
	if err := manager.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
