package sqlite

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "mural.db"))
	t.Cleanup(func() { s.Close() })
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func TestLoadMissingRoom(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Load(context.Background(), "never-saved")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Errorf("Load of unknown room = %q, want nil", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := []byte(`{"entries":[{"id":"o1","field":"x","value":10,"ts":1,"actor":"a"}]}`)
	if err := s.Save(ctx, "r1", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "r1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Load = %q, want %q", got, want)
	}
}

func TestSaveUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, "r1", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "r1", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Errorf("Load after upsert = %q, want v2", got)
	}
}
