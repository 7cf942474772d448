package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile decodes a YAML file into dst. ${VAR} references are expanded from the
// environment before decoding, and unknown keys are rejected.
func LoadFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return Decode(data, dst)
}

// Decode decodes YAML bytes into dst with the same rules as LoadFile.
func Decode(data []byte, dst any) error {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFile, err)
	}
	return nil
}
