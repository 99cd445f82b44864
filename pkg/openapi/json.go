package openapi

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MarshalJSON serializes the spec to indented JSON bytes.
func MarshalJSON(spec *Spec) ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}

// Write serializes the spec as indented JSON followed by a newline.
func Write(w io.Writer, spec *Spec) error {
	data, err := MarshalJSON(spec)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// WriteJSON writes the spec to filename, creating parent directories.
func WriteJSON(spec *Spec, filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := Write(f, spec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
