// Package store provides the best-effort atomic JSON persistence shared by
// every durable collection in the engine (tuning, attempts, learnings,
// facility-graph cache, enable/disable state). A single writer per file is
// assumed; readers always see either the pre-write or post-write content
// because writes land via a temp file plus rename.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// SaveJSON marshals v and writes it to path atomically (temp file + rename).
// Failures are logged and swallowed per spec: the in-memory store remains
// authoritative until the next successful write.
func SaveJSON(path string, v any, logger *logrus.Logger) {
	if err := saveJSON(path, v); err != nil {
		logger.WithFields(logrus.Fields{
			"path":  path,
			"error": err,
		}).Warn("persistence write failed, keeping in-memory state")
	}
}

func saveJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// LoadJSON reads and unmarshals path into v. A missing or corrupt file is
// treated as empty: the error is logged and the caller's zero value stands.
func LoadJSON(path string, v any, logger *logrus.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WithFields(logrus.Fields{"path": path, "error": err}).Warn("failed to read persisted state")
		}
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.WithFields(logrus.Fields{"path": path, "error": err}).Warn("corrupt persisted state discarded")
	}
}

// Archive copies the file at path into a timestamped sibling under an
// archive/ subdirectory, best-effort. Used by the operator's reset-learnings
// operation so a truncation doesn't silently discard history.
func Archive(path, stamp string, logger *logrus.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WithFields(logrus.Fields{"path": path, "error": err}).Warn("archive read failed")
		}
		return
	}
	dir := filepath.Join(filepath.Dir(path), "archive")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.WithFields(logrus.Fields{"path": path, "error": err}).Warn("archive mkdir failed")
		return
	}
	dest := filepath.Join(dir, stamp+"-"+filepath.Base(path))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		logger.WithFields(logrus.Fields{"path": path, "error": err}).Warn("archive write failed")
	}
}
