package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type failingReader struct {
	data []byte
	read bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.read {
		f.read = true
		n := copy(p, f.data)
		return n, nil
	}
	return 0, io.ErrUnexpectedEOF
}

func TestFileSystemStore_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("saves blob to disk", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		data := bytes.NewReader([]byte("##fileformat=VCFv4.2\n"))
		n, err := store.Save(ctx, "20240101_abc.vcf", data, 21)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 21 {
			t.Errorf("expected 21 bytes written, got %d", n)
		}

		content, err := os.ReadFile(filepath.Join(dir, "20240101_abc.vcf"))
		if err != nil {
			t.Fatalf("failed to read saved blob: %v", err)
		}
		if string(content) != "##fileformat=VCFv4.2\n" {
			t.Errorf("unexpected content %q", content)
		}
	})

	t.Run("saves large content", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		large := strings.Repeat("ACGT", 256*1024) // 1MB
		n, err := store.Save(ctx, "big.fasta", strings.NewReader(large), int64(len(large)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != int64(len(large)) {
			t.Errorf("expected %d bytes, got %d", len(large), n)
		}
	})

	t.Run("interrupted write leaves nothing under the final name", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		_, err := store.Save(ctx, "partial.vcf", &failingReader{data: []byte("chr1\t100")}, 8)
		if err == nil {
			t.Fatal("expected write error")
		}

		if _, statErr := os.Stat(filepath.Join(dir, "partial.vcf")); !os.IsNotExist(statErr) {
			t.Error("partial blob visible under final name")
		}

		// The temp artifact must be discarded too.
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("failed to read dir: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected empty storage dir, found %d entries", len(entries))
		}
	})
}

func TestFileSystemStore_Exists(t *testing.T) {
	ctx := context.Background()

	t.Run("present blob", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)
		os.WriteFile(filepath.Join(dir, "x.bed"), []byte("chr1\t1\t2\n"), 0644)

		ok, err := store.Exists(ctx, "x.bed")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Error("expected blob to exist")
		}
	})

	t.Run("missing blob", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())
		ok, err := store.Exists(ctx, "missing.bed")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected blob to be absent")
		}
	})
}

func TestFileSystemStore_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("reads back saved bytes", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		payload := []byte(">seq1\nACGT\n")
		if _, err := store.Save(ctx, "g.fa", bytes.NewReader(payload), int64(len(payload))); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		rc, err := store.Open(ctx, "g.fa")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer rc.Close()

		got, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("round-trip mismatch: %q", got)
		}
	})

	t.Run("missing blob errors", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())
		if _, err := store.Open(ctx, "nope.fa"); err == nil {
			t.Error("expected error for missing blob")
		}
	})
}

func TestFileSystemStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes existing blob", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)
		path := filepath.Join(dir, "del.vcf")
		os.WriteFile(path, []byte("data"), 0644)

		if err := store.Delete(ctx, "del.vcf"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("expected blob to be deleted")
		}
	})

	t.Run("no error for missing blob", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())
		if err := store.Delete(ctx, "missing.vcf"); err != nil {
			t.Errorf("expected no error for missing blob, got: %v", err)
		}
	})
}

func TestFileSystemStore_EnsureReady(t *testing.T) {
	ctx := context.Background()

	t.Run("creates directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "blobs")
		store := NewFileSystemStore(dir)

		if err := store.EnsureReady(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected a directory")
		}
	})

	t.Run("succeeds if directory exists", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())
		if err := store.EnsureReady(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
