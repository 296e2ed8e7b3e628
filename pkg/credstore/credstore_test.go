package credstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestMemoryCreateVerify(t *testing.T) {
	ctx := context.Background()
	st := NewMemory(nil)

	created, err := st.Create(ctx, "alice", "pw1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created {
		t.Fatal("Create: expected true for new username")
	}

	created, err = st.Create(ctx, "alice", "other")
	if err != nil {
		t.Fatalf("Create duplicate: %v", err)
	}
	if created {
		t.Fatal("Create: expected false for existing username")
	}

	ok, err := st.Verify(ctx, "alice", "pw1")
	if err != nil || !ok {
		t.Fatalf("Verify correct secret: ok=%t err=%v", ok, err)
	}
	ok, err = st.Verify(ctx, "alice", "wrong")
	if err != nil || ok {
		t.Fatalf("Verify wrong secret: ok=%t err=%v", ok, err)
	}
	ok, err = st.Verify(ctx, "nobody", "pw1")
	if err != nil || ok {
		t.Fatalf("Verify unknown user: ok=%t err=%v", ok, err)
	}
}

func TestMemoryFailWith(t *testing.T) {
	ctx := context.Background()
	st := NewMemory(nil)
	boom := errors.New("store offline")
	st.FailWith(boom)

	if _, err := st.Verify(ctx, "alice", "pw1"); !errors.Is(err, boom) {
		t.Fatalf("Verify: want %v got %v", boom, err)
	}
	if _, err := st.Create(ctx, "alice", "pw1"); !errors.Is(err, boom) {
		t.Fatalf("Create: want %v got %v", boom, err)
	}

	st.FailWith(nil)
	if _, err := st.Create(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("Create after clear: %v", err)
	}
}

func TestArgon2Hasher(t *testing.T) {
	h := Argon2Hasher{}
	stored, err := h.Hash("secret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if stored == "secret" {
		t.Fatal("Hash: secret stored verbatim")
	}

	ok, err := h.Compare("secret", stored)
	if err != nil || !ok {
		t.Fatalf("Compare match: ok=%t err=%v", ok, err)
	}
	ok, err = h.Compare("wrong", stored)
	if err != nil || ok {
		t.Fatalf("Compare mismatch: ok=%t err=%v", ok, err)
	}

	// Fresh salts: hashing twice must not produce the same value.
	again, err := h.Hash("secret")
	if err != nil {
		t.Fatalf("Hash again: %v", err)
	}
	if again == stored {
		t.Fatal("Hash: identical output for two calls, salt not fresh")
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "creds.db")

	st, err := OpenSQLite(path, PlainHasher{})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	created, err := st.Create(ctx, "alice", "pw1")
	if err != nil || !created {
		t.Fatalf("Create: created=%t err=%v", created, err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = OpenSQLite(path, PlainHasher{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = st.Close() }()

	ok, err := st.Verify(ctx, "alice", "pw1")
	if err != nil || !ok {
		t.Fatalf("Verify after reopen: ok=%t err=%v", ok, err)
	}
	created, err = st.Create(ctx, "alice", "pw2")
	if err != nil {
		t.Fatalf("Create duplicate: %v", err)
	}
	if created {
		t.Fatal("Create: expected false for existing username after reopen")
	}
}

func TestSQLiteConcurrentCreateSameUsername(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "creds.db")

	st, err := OpenSQLite(path, PlainHasher{})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = st.Close() }()

	const racers = 8
	wins := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		go func() {
			created, err := st.Create(ctx, "alice", "pw1")
			if err != nil {
				t.Errorf("Create: %v", err)
			}
			wins <- created
		}()
	}

	var winners int
	for i := 0; i < racers; i++ {
		if <-wins {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("concurrent Create: want exactly 1 winner, got %d", winners)
	}
}
