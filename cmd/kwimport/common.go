package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/kwimport/internal/core"
	"github.com/JonMunkholm/kwimport/internal/logging"
	"github.com/JonMunkholm/kwimport/internal/schema"
)

// defaultMaxFileSize matches the server's IMPORT_MAX_FILE_SIZE default.
const defaultMaxFileSize = 50 << 20

func newLogger(opts *rootOptions, w io.Writer) *slog.Logger {
	return logging.New(w, opts.logLevel, opts.logFormat)
}

// newService builds a pipeline over store. Detection-only commands pass
// a nil store since they never persist.
func newService(store core.KeywordStore) *core.Service {
	return core.NewService(store, schema.Catalog(), core.ServiceConfig{
		MaxFileSize:   defaultMaxFileSize,
		MaxConcurrent: 1,
	})
}

type inputFile struct {
	name string
	mime string
	data []byte
}

func readInput(path string) (*inputFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("read file: %w", err))
	}
	return &inputFile{
		name: filepath.Base(path),
		mime: mime.TypeByExtension(filepath.Ext(path)),
		data: data,
	}, nil
}

// loadOptions reads import options from a YAML file. An empty path gives
// zero options.
func loadOptions(path string) (core.ImportOptions, error) {
	var opts core.ImportOptions
	if path == "" {
		return opts, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, withCode(exitUsage, fmt.Errorf("read options: %w", err))
	}
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return opts, withCode(exitUsage, fmt.Errorf("%w: options file %s: %v", core.ErrInvalidOptions, path, err))
	}
	return opts, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
