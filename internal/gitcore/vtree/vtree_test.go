package vtree

import (
	"bytes"
	"testing"
)

func TestWriteAndRead(t *testing.T) {
	tree := New()
	if err := tree.Write("a.txt", []byte("hello"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := tree.Read("a.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Read() = %q, want %q", got, "hello")
	}
	stat, err := tree.Stat("a.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if stat.Mode != DefaultFileMode {
		t.Errorf("Mode = %o, want %o (default)", stat.Mode, DefaultFileMode)
	}
}

func TestWrite_CreatesMissingParentDirs(t *testing.T) {
	tree := New()
	if err := tree.Write("dir/sub/file.txt", []byte("nested"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := tree.Read("dir/sub/file.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "nested" {
		t.Errorf("Read() = %q, want %q", got, "nested")
	}
}

func TestWrite_ExplicitMode(t *testing.T) {
	tree := New()
	if err := tree.Write("run.sh", []byte("#!/bin/sh"), ExecutableFileMode); err != nil {
		t.Fatalf("Write: %v", err)
	}
	stat, err := tree.Stat("run.sh")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if stat.Mode != ExecutableFileMode {
		t.Errorf("Mode = %o, want %o", stat.Mode, ExecutableFileMode)
	}
}

func TestRead_MissingPath(t *testing.T) {
	tree := New()
	if _, err := tree.Read("missing.txt"); err == nil {
		t.Error("expected an error reading a nonexistent path")
	} else if _, ok := err.(*NotExist); !ok {
		t.Errorf("error = %T, want *NotExist", err)
	}
}

func TestRead_DirectoryIsPathKindConflict(t *testing.T) {
	tree := New()
	if err := tree.Mkdir("dir"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := tree.Read("dir"); err == nil {
		t.Error("expected an error reading a directory as a file")
	} else if _, ok := err.(*PathKindConflict); !ok {
		t.Errorf("error = %T, want *PathKindConflict", err)
	}
}

func TestWrite_FileOverDirectoryConflicts(t *testing.T) {
	tree := New()
	if err := tree.Mkdir("dir"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := tree.Write("dir", []byte("oops"), 0); err == nil {
		t.Error("expected an error writing a file over an existing directory")
	}
}

func TestAppend(t *testing.T) {
	tree := New()
	if err := tree.Write("log.txt", []byte("line1\n"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tree.Append("log.txt", []byte("line2\n")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := tree.Read("log.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "line1\nline2\n" {
		t.Errorf("Read() = %q, want %q", got, "line1\nline2\n")
	}
}

func TestAppend_MissingFile(t *testing.T) {
	tree := New()
	if err := tree.Append("missing.txt", []byte("x")); err == nil {
		t.Error("expected an error appending to a nonexistent file")
	}
}

func TestDelete(t *testing.T) {
	tree := New()
	tree.Write("a.txt", []byte("x"), 0)
	if err := tree.Delete("a.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := tree.Read("a.txt"); err == nil {
		t.Error("expected a.txt to be gone after Delete")
	}
}

func TestDelete_MissingPath(t *testing.T) {
	tree := New()
	if err := tree.Delete("missing.txt"); err == nil {
		t.Error("expected an error deleting a nonexistent path")
	}
}

func TestMkdirAndRmdir(t *testing.T) {
	tree := New()
	if err := tree.Mkdir("a/b/c"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := tree.List("a/b/c"); err != nil {
		t.Fatalf("expected a/b/c to exist, List: %v", err)
	}
	if err := tree.Rmdir("a/b/c"); err != nil {
		t.Fatalf("Rmdir: %v", err)
	}
	if _, err := tree.List("a/b/c"); err == nil {
		t.Error("expected a/b/c to be gone after Rmdir")
	}
}

func TestRmdir_OnFileConflicts(t *testing.T) {
	tree := New()
	tree.Write("a.txt", []byte("x"), 0)
	if err := tree.Rmdir("a.txt"); err == nil {
		t.Error("expected an error removing a file via Rmdir")
	} else if _, ok := err.(*PathKindConflict); !ok {
		t.Errorf("error = %T, want *PathKindConflict", err)
	}
}

func TestList_SortedImmediateChildrenOnly(t *testing.T) {
	tree := New()
	tree.Write("b.txt", []byte("b"), 0)
	tree.Write("a.txt", []byte("a"), 0)
	tree.Mkdir("sub")
	tree.Write("sub/nested.txt", []byte("n"), 0)

	entries, err := tree.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List() returned %d entries, want 3", len(entries))
	}
	if entries[0].Path != "a.txt" || entries[1].Path != "b.txt" || entries[2].Path != "sub" {
		t.Errorf("List() order = %+v, want [a.txt b.txt sub]", entries)
	}
	if !entries[2].IsDir {
		t.Error("expected sub to be reported as a directory")
	}
}

func TestListRecursive_SortedDeepFilesOnly(t *testing.T) {
	tree := New()
	tree.Write("z.txt", []byte("z"), 0)
	tree.Write("sub/a.txt", []byte("sa"), 0)
	tree.Write("sub/deeper/b.txt", []byte("sdb"), 0)
	tree.Mkdir("emptydir")

	entries, err := tree.ListRecursive("")
	if err != nil {
		t.Fatalf("ListRecursive: %v", err)
	}
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	want := []string{"sub/a.txt", "sub/deeper/b.txt", "z.txt"}
	if len(paths) != len(want) {
		t.Fatalf("ListRecursive() = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("ListRecursive()[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestCopy_File(t *testing.T) {
	tree := New()
	tree.Write("src.txt", []byte("content"), ExecutableFileMode)
	if err := tree.Copy("src.txt", "dst.txt"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	got, err := tree.Read("dst.txt")
	if err != nil {
		t.Fatalf("Read dst: %v", err)
	}
	if string(got) != "content" {
		t.Errorf("copied content = %q, want %q", got, "content")
	}
	stat, _ := tree.Stat("dst.txt")
	if stat.Mode != ExecutableFileMode {
		t.Errorf("copied mode = %o, want %o", stat.Mode, ExecutableFileMode)
	}

	// Mutating the original after copy must not affect the copy.
	tree.Write("src.txt", []byte("changed"), 0)
	got, _ = tree.Read("dst.txt")
	if string(got) != "content" {
		t.Errorf("Copy should be a deep copy; dst.txt changed to %q", got)
	}
}

func TestCopy_DirectorySubtree(t *testing.T) {
	tree := New()
	tree.Write("src/a.txt", []byte("a"), 0)
	tree.Write("src/sub/b.txt", []byte("b"), 0)

	if err := tree.Copy("src", "dst"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	got, err := tree.Read("dst/sub/b.txt")
	if err != nil {
		t.Fatalf("Read dst/sub/b.txt: %v", err)
	}
	if !bytes.Equal(got, []byte("b")) {
		t.Errorf("dst/sub/b.txt = %q, want %q", got, "b")
	}
	if _, err := tree.Read("src/a.txt"); err != nil {
		t.Errorf("Copy should not remove the source, got err: %v", err)
	}
}

func TestCopy_KindConflict(t *testing.T) {
	tree := New()
	tree.Write("file.txt", []byte("x"), 0)
	tree.Mkdir("dir")
	if err := tree.Copy("file.txt", "dir"); err == nil {
		t.Error("expected an error copying a file onto an existing directory")
	}
}

func TestMove(t *testing.T) {
	tree := New()
	tree.Write("src.txt", []byte("content"), 0)
	if err := tree.Move("src.txt", "dst.txt"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := tree.Read("src.txt"); err == nil {
		t.Error("expected src.txt to be gone after Move")
	}
	got, err := tree.Read("dst.txt")
	if err != nil {
		t.Fatalf("Read dst.txt: %v", err)
	}
	if string(got) != "content" {
		t.Errorf("dst.txt = %q, want %q", got, "content")
	}
}

func TestPathKindConflict_Error(t *testing.T) {
	err := &PathKindConflict{Path: "a/b", Want: "file", Got: "directory"}
	want := "vtree: a/b: expected file, found directory"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNotExist_Error(t *testing.T) {
	err := &NotExist{Path: "missing"}
	want := "vtree: missing: no such path"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestSplitPath_RejectsTraversalAndAbsolute(t *testing.T) {
	tree := New()
	cases := []string{"../escape.txt", "/abs/path.txt", "a/../../b.txt", ""}
	for _, p := range cases {
		if err := tree.Write(p, []byte("x"), 0); err == nil {
			t.Errorf("Write(%q) expected an error, got nil", p)
		}
	}
}
