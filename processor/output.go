package processor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
)

// WriteStatus describes what WriteResult did with one file.
type WriteStatus int

const (
	Unchanged WriteStatus = iota
	Written
	Removed
)

func (s WriteStatus) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Written:
		return "written"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("?%d?", int(s))
	}
}

// FileChange records the effect of WriteResult on one file.
type FileChange struct {
	Path   string
	Status WriteStatus
}

// WriteResult writes the artifacts of a pass into dir, which should be the
// package's directory. Files whose contents are already up to date are not
// touched. Per-type files left over from types that are no longer valid info
// proxies are removed.
//
// All files are attempted even if some fail; the returned error combines
// every failure.
func WriteResult(dir string, res *Result) ([]FileChange, error) {
	artifacts := make([]Artifact, 0, len(res.Artifacts)+2)
	artifacts = append(artifacts, res.Artifacts...)
	artifacts = append(artifacts, res.Aggregated)
	if res.Registration != nil {
		artifacts = append(artifacts, *res.Registration)
	}

	var changes []FileChange
	var err error
	keep := map[string]struct{}{}
	for _, a := range artifacts {
		keep[a.Filename] = struct{}{}
		path := filepath.Join(dir, a.Filename)
		written, werr := writeIfChanged(path, a.Source)
		if werr != nil {
			err = multierr.Append(err, werr)
			continue
		}
		status := Unchanged
		if written {
			status = Written
		}
		changes = append(changes, FileChange{Path: path, Status: status})
	}

	stale, gerr := filepath.Glob(filepath.Join(dir, "*"+instanceGetterSuffix))
	if gerr != nil {
		return changes, multierr.Append(err, gerr)
	}
	for _, path := range stale {
		if _, ok := keep[filepath.Base(path)]; ok {
			continue
		}
		if !isGenerated(path) {
			continue
		}
		if rerr := os.Remove(path); rerr != nil {
			err = multierr.Append(err, rerr)
			continue
		}
		changes = append(changes, FileChange{Path: path, Status: Removed})
	}
	return changes, err
}

func writeIfChanged(path string, data []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// isGenerated returns true if the file at path starts with the header that
// is written to every generated file. Hand-written files are never removed.
func isGenerated(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(string(data), "// "+generatedHeader)
}
