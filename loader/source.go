package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
)

// ErrNotFound is returned by a source when the model does not exist there.
var ErrNotFound = errors.New("model not found")

// Source fetches and decodes a glTF/GLB document from one kind of location.
type Source interface {
	Fetch(ctx context.Context, location string) (*gltf.Document, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, location string) (*gltf.Document, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context, location string) (*gltf.Document, error) {
	return f(ctx, location)
}

// FileSource reads models from a directory tree. Locations are relative to
// Root and may not escape it.
type FileSource struct {
	Root string
}

// Fetch opens and decodes the model at Root/location.
func (s FileSource) Fetch(ctx context.Context, location string) (*gltf.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := filepath.Clean("/" + filepath.FromSlash(strings.TrimPrefix(location, "/")))
	path := filepath.Join(s.Root, rel)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", location, ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", location, err)
	}
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", location, err)
	}
	return doc, nil
}
