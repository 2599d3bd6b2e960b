package resolve_version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/mrmelon54/mc-launcher/manifest"
	"go.uber.org/zap"
	"os"
	"path/filepath"
)

var (
	ErrVersionNotFound  = errors.New("version not found")
	ErrInheritanceCycle = errors.New("inheritsFrom cycle")
)

// Manifest provides download metadata for versions missing locally.
type Manifest interface {
	Entry(id string) (manifest.Entry, bool)
}

// Fetcher downloads a file and verifies it against the expected hash.
type Fetcher interface {
	FetchFile(ctx context.Context, url, localPath, sha1 string) error
}

type Resolver struct {
	versionsDir string
	manifest    Manifest
	fetcher     Fetcher
	logger      *zap.Logger
}

func NewResolver(versionsDir string, m Manifest, f Fetcher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{versionsDir: versionsDir, manifest: m, fetcher: f, logger: logger.Named("resolve")}
}

// DescriptorPath is versions/<id>/<id>.json.
func DescriptorPath(versionsDir, id string) string {
	return filepath.Join(versionsDir, id, id+".json")
}

// JarPath is versions/<id>/<id>.jar.
func JarPath(versionsDir, id string) string {
	return filepath.Join(versionsDir, id, id+".jar")
}

// Resolve loads the version and every version it inherits from, returning
// a fresh merged descriptor.
func (r *Resolver) Resolve(ctx context.Context, id string) (*Descriptor, error) {
	raw, err := r.ResolveRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	var d Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return &d, nil
}

// ResolveRaw returns the merged json of the inheritance chain starting at id.
func (r *Resolver) ResolveRaw(ctx context.Context, id string) ([]byte, error) {
	return r.resolve(ctx, id, make(map[string]bool))
}

func (r *Resolver) resolve(ctx context.Context, id string, seen map[string]bool) ([]byte, error) {
	if seen[id] {
		return nil, fmt.Errorf("%w: %s", ErrInheritanceCycle, id)
	}
	seen[id] = true

	raw, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	var head struct {
		InheritsFrom string `json:"inheritsFrom"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	if head.InheritsFrom == "" {
		return raw, nil
	}
	parent, err := r.resolve(ctx, head.InheritsFrom, seen)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("merging descriptor", zap.String("child", id), zap.String("parent", head.InheritsFrom))
	return Merge(raw, parent)
}

func (r *Resolver) load(ctx context.Context, id string) ([]byte, error) {
	p := DescriptorPath(r.versionsDir, id)
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		entry, ok := r.manifest.Entry(id)
		if !ok || entry.Url == "" {
			return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, id)
		}
		r.logger.Info("fetching descriptor", zap.String("id", id), zap.String("url", entry.Url))
		if err := r.fetcher.FetchFile(ctx, entry.Url, p, entry.Sha1); err != nil {
			return nil, err
		}
	}
	raw, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, id)
	}
	return raw, err
}
