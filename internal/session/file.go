package session

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/rileyhilliard/loadgate/internal/errors"
)

// fileDoc is the on-disk layout: session ID -> key -> value.
type fileDoc struct {
	Sessions map[string]map[string]string `json:"sessions"`
}

// File keeps values in a JSON document. Writes replace the file atomically,
// so a crash never leaves a torn document behind.
type File struct {
	mu   sync.Mutex
	path string
	id   string
}

// NewFile creates a store backed by the JSON file at path, scoped to session id.
// The file is created on first write.
func NewFile(path, id string) (*File, error) {
	if path == "" {
		return nil, errors.New(errors.ErrSession,
			"File session backend needs a path",
			"Set session.path in .loadgate.yaml")
	}
	return &File{path: path, id: id}, nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Get returns the value for key in this session.
func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc.Sessions[f.id][key]
	return v, ok, nil
}

// Set stores value under key in this session.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if doc.Sessions[f.id] == nil {
		doc.Sessions[f.id] = make(map[string]string)
	}
	doc.Sessions[f.id][key] = value
	return f.save(doc)
}

// Delete removes key from this session.
func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Sessions[f.id][key]; !ok {
		return nil
	}
	delete(doc.Sessions[f.id], key)
	if len(doc.Sessions[f.id]) == 0 {
		delete(doc.Sessions, f.id)
	}
	return f.save(doc)
}

// Close is a no-op; every write is already durable.
func (f *File) Close() error { return nil }

func (f *File) load() (*fileDoc, error) {
	doc := &fileDoc{Sessions: make(map[string]map[string]string)}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrSession,
			"Failed to read session file",
			"Check permissions on "+f.path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSession,
			"Session file is not valid JSON",
			"Delete "+f.path+" or run 'loadgate session reset'")
	}
	if doc.Sessions == nil {
		doc.Sessions = make(map[string]map[string]string)
	}
	return doc, nil
}

func (f *File) save(doc *fileDoc) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrSession,
			"Failed to create session directory",
			"Check permissions on "+filepath.Dir(f.path))
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSession,
			"Failed to encode session file",
			"This shouldn't happen")
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(data)); err != nil {
		return errors.WrapWithCode(err, errors.ErrSession,
			"Failed to write session file",
			"Check disk space and permissions on "+f.path)
	}
	return nil
}
