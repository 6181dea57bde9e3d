package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileKind classifies the files the loader is allowed to read.
type FileKind int

const (
	// FileConfig is the YAML configuration document (.yaml/.yml).
	FileConfig FileKind = iota
	// FileFilter is a jq program (.jq).
	FileFilter
	// FileFallback is a JSON fallback payload (.json).
	FileFallback
)

// extensions lists the accepted extensions per kind, lowercased.
var extensions = map[FileKind][]string{
	FileConfig:   {".yaml", ".yml"},
	FileFilter:   {".jq"},
	FileFallback: {".json"},
}

func (k FileKind) String() string {
	switch k {
	case FileConfig:
		return "config"
	case FileFilter:
		return "filter"
	case FileFallback:
		return "fallback"
	}
	return "unknown"
}

// File is a path whose extension has been checked against its kind.
type File struct {
	Path string
	Kind FileKind
}

// NewFile validates that path carries an extension accepted for kind.
// A wrong extension is a configuration error.
func NewFile(path string, kind FileKind) (File, error) {
	if path == "" {
		return File{}, fmt.Errorf("%s file path is empty", kind)
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, ok := range extensions[kind] {
		if ext == ok {
			return File{Path: path, Kind: kind}, nil
		}
	}
	return File{}, fmt.Errorf("%s file %q must have extension %s",
		kind, path, strings.Join(extensions[kind], " or "))
}

// Read validates the extension and returns the file contents.
func (f File) Read() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s file: %w", f.Kind, err)
	}
	return data, nil
}
