package index

import (
	"io"
	"slices"
	"testing"
)

func testDirectories(t *testing.T) map[string]Directory {
	fs, err := OpenFSDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFSDirectory: %v", err)
	}
	return map[string]Directory{
		"fs":  fs,
		"ram": NewRAMDirectory(),
	}
}

func TestDirectoryCreateOpenRoundTrip(t *testing.T) {
	for name, dir := range testDirectories(t) {
		t.Run(name, func(t *testing.T) {
			out, err := dir.CreateFile("data")
			if err != nil {
				t.Fatalf("CreateFile: %v", err)
			}
			if _, err := out.Write([]byte("hello ")); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if _, err := out.Write([]byte("world")); err != nil {
				t.Fatalf("Write: %v", err)
			}

			// nothing is visible under the final name before Close
			if ok, _ := dir.Exists("data"); ok {
				t.Fatal("file visible before Close")
			}

			if err := out.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if ok, _ := dir.Exists("data"); !ok {
				t.Fatal("file not visible after Close")
			}

			in, err := dir.OpenFile("data")
			if err != nil {
				t.Fatalf("OpenFile: %v", err)
			}
			defer in.Close() // nolint:errcheck

			if size, err := in.Size(); err != nil || size != 11 {
				t.Fatalf("Size = %d, %v", size, err)
			}
			data, err := io.ReadAll(in)
			if err != nil || string(data) != "hello world" {
				t.Fatalf("ReadAll = %q, %v", data, err)
			}

			var part [5]byte
			if _, err := in.ReadAt(part[:], 6); err != nil || string(part[:]) != "world" {
				t.Fatalf("ReadAt = %q, %v", part, err)
			}
		})
	}
}

func TestDirectoryRenameDeleteList(t *testing.T) {
	for name, dir := range testDirectories(t) {
		t.Run(name, func(t *testing.T) {
			for _, f := range []string{"a", "b"} {
				out, _ := dir.CreateFile(f)
				_, _ = out.Write([]byte(f))
				if err := out.Close(); err != nil {
					t.Fatalf("close %q: %v", f, err)
				}
			}

			if err := dir.RenameFile("a", "c"); err != nil {
				t.Fatalf("RenameFile: %v", err)
			}
			if err := dir.DeleteFile("b"); err != nil {
				t.Fatalf("DeleteFile: %v", err)
			}

			names, err := dir.ListFiles()
			if err != nil {
				t.Fatalf("ListFiles: %v", err)
			}
			slices.Sort(names)
			if !slices.Equal(names, []string{"c"}) {
				t.Fatalf("expected [c], got %v", names)
			}

			if err := dir.DeleteFile("missing"); err == nil {
				t.Error("expected error deleting a missing file")
			}
			if _, err := dir.OpenFile("missing"); err == nil {
				t.Error("expected error opening a missing file")
			}
		})
	}
}

func TestDirectoryOverwriteOnClose(t *testing.T) {
	for name, dir := range testDirectories(t) {
		t.Run(name, func(t *testing.T) {
			for _, content := range []string{"first", "second"} {
				out, _ := dir.CreateFile("data")
				_, _ = out.Write([]byte(content))
				if err := out.Close(); err != nil {
					t.Fatalf("close: %v", err)
				}
			}

			in, err := dir.OpenFile("data")
			if err != nil {
				t.Fatalf("OpenFile: %v", err)
			}
			defer in.Close() // nolint:errcheck
			data, _ := io.ReadAll(in)
			if string(data) != "second" {
				t.Fatalf("expected replacement content, got %q", data)
			}
		})
	}
}
