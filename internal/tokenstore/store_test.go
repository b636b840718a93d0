// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package tokenstore

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	store, err := Open("", ttl)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func TestStore_PutGetDelete(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, time.Hour)

	if err := store.Put("reset:u1", []byte("token-value")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get("reset:u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("token-value")) {
		t.Errorf("Get = %q, want token-value", got)
	}

	if err := store.Delete("reset:u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get("reset:u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: err = %v, want ErrNotFound", err)
	}
}

func TestStore_MissingKey(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, time.Hour)
	if _, err := store.Get("absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_DeleteAbsentKey(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, time.Hour)
	if err := store.Delete("absent"); err != nil {
		t.Errorf("Delete absent: %v", err)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 50*time.Millisecond)

	if err := store.Put("short", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Get("short"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if _, err := store.Get("short"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after expiry: err = %v, want ErrNotFound", err)
	}
}

func TestStore_Overwrite(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, time.Hour)

	if err := store.Put("k", []byte("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put("k", []byte("two")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}

	got, err := store.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "two" {
		t.Errorf("Get = %q, want two", got)
	}
}
