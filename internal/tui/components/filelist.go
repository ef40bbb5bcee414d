package components

import (
	"path/filepath"
	"strings"
)

// File statuses shown in the list.
const (
	StatusRunning   = "running"
	StatusGenerated = "generated"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// FileEntry is one output path and what happened to it.
type FileEntry struct {
	Path    string
	Status  string
	Message string
}

// FileList renders output paths relative to the output directory in the
// order they were first seen.
type FileList struct {
	entries []FileEntry
}

// NewFileList builds a list from order and the per-path entries. Paths
// under root are shown relative to it.
func NewFileList(root string, order []string, files map[string]FileEntry) FileList {
	entries := make([]FileEntry, 0, len(order))
	for _, p := range order {
		entry := files[p]
		entry.Path = display(root, p)
		entries = append(entries, entry)
	}
	return FileList{entries: entries}
}

// Entries returns a copy of the entries.
func (l FileList) Entries() []FileEntry {
	clone := make([]FileEntry, len(l.entries))
	copy(clone, l.entries)
	return clone
}

// Tail returns at most n of the most recent entries and how many were hidden.
func (l FileList) Tail(n int) ([]FileEntry, int) {
	if n <= 0 || len(l.entries) <= n {
		return l.Entries(), 0
	}
	hidden := len(l.entries) - n
	clone := make([]FileEntry, n)
	copy(clone, l.entries[hidden:])
	return clone, hidden
}

func display(root, p string) string {
	if root == "" {
		return p
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return p
	}
	return rel
}
