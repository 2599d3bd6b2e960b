package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	resolve_version "github.com/mrmelon54/mc-launcher/resolve-version"
	"github.com/mrmelon54/mc-launcher/rules"
	"go.uber.org/zap"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Dirs are the install locations used by FetchVersion.
type Dirs struct {
	Versions  string
	Libraries string
	Assets    string
	Natives   string
	// Game is the instance directory, target of map_to_resources indexes.
	Game string
}

// Result describes what was installed for a version.
type Result struct {
	// Classpath holds the libraries in descriptor order followed by the
	// client jar.
	Classpath      []string
	ClientJar      string
	AssetsRoot     string
	AssetIndexName string
	// GameAssets is where legacy versions expect their assets.
	GameAssets string
}

type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

type AssetIndexFile struct {
	Objects        map[string]AssetObject `json:"objects"`
	Virtual        bool                   `json:"virtual,omitempty"`
	MapToResources bool                   `json:"map_to_resources,omitempty"`
}

// FetchLibrary downloads a library and, when it ships natives for the
// current platform, extracts them into nativesDir. The returned path is the
// jar to put on the classpath, empty for natives-only libraries.
func (f *Fetcher) FetchLibrary(ctx context.Context, lib resolve_version.Library, librariesDir, nativesDir string, p *Progress) (string, error) {
	var classpath string
	if lib.HasArtifact() {
		a, err := lib.Artifact(f.LibrariesHost)
		if err != nil {
			return "", err
		}
		local := filepath.Join(librariesDir, filepath.FromSlash(a.Path))
		if err := f.FetchArtifact(ctx, a.Url, local, "", a.Sha1, a.Size, p); err != nil {
			return "", err
		}
		classpath = local
	}

	classifier, ok := lib.NativeClassifier(f.Evaluator.Platform)
	if !ok {
		return classpath, nil
	}
	a, err := lib.ClassifierArtifact(f.LibrariesHost, classifier)
	if err != nil {
		return "", err
	}
	local := filepath.Join(librariesDir, filepath.FromSlash(a.Path))
	if err := f.FetchArtifact(ctx, a.Url, local, "", a.Sha1, a.Size, p); err != nil {
		return "", err
	}
	var exclude []string
	if lib.Extract != nil {
		exclude = lib.Extract.Exclude
	}
	if err := extractNatives(local, nativesDir, exclude); err != nil {
		return "", fmt.Errorf("extract natives %s: %w", lib.Name, err)
	}
	return classpath, nil
}

func (f *Fetcher) librarySize(lib resolve_version.Library) int64 {
	if lib.Downloads == nil {
		return 0
	}
	var n int64
	if lib.Downloads.Artifact != nil {
		n += lib.Downloads.Artifact.Size
	}
	if classifier, ok := lib.NativeClassifier(f.Evaluator.Platform); ok {
		n += lib.Downloads.Classifiers[classifier].Size
	}
	return n
}

// FetchVersion installs everything a resolved descriptor needs, in the
// order client jar, libraries, asset index, assets. The first failure
// aborts the phase; a *FetchError names the url. ctx is checked between
// libraries and between assets.
func (f *Fetcher) FetchVersion(ctx context.Context, desc *resolve_version.Descriptor, dirs Dirs, features rules.Features) (*Result, error) {
	libs := make([]resolve_version.Library, 0, len(desc.Libraries))
	for _, lib := range desc.Libraries {
		if f.Evaluator.Allowed(lib.Rules, features) {
			libs = append(libs, lib)
		}
	}

	p := new(Progress)
	if desc.Downloads.Client != nil {
		p.Total += desc.Downloads.Client.Size
	}
	for _, lib := range libs {
		p.Total += f.librarySize(lib)
	}
	if desc.AssetIndex != nil {
		p.Total += desc.AssetIndex.Size + desc.AssetIndex.TotalSize
	}

	res := &Result{
		ClientJar:  resolve_version.JarPath(dirs.Versions, desc.Id),
		AssetsRoot: dirs.Assets,
		GameAssets: dirs.Assets,
	}
	if c := desc.Downloads.Client; c != nil {
		if err := f.FetchArtifact(ctx, c.Url, res.ClientJar, desc.Id+".jar", c.Sha1, c.Size, p); err != nil {
			return nil, err
		}
	}

	for _, lib := range libs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		jar, err := f.FetchLibrary(ctx, lib, dirs.Libraries, dirs.Natives, p)
		if err != nil {
			return nil, err
		}
		if jar != "" {
			res.Classpath = append(res.Classpath, jar)
		}
	}
	res.Classpath = append(res.Classpath, res.ClientJar)

	if desc.AssetIndex == nil {
		return res, nil
	}
	res.AssetIndexName = desc.AssetIndex.Id
	if err := f.fetchAssets(ctx, desc.AssetIndex, dirs, res, p); err != nil {
		return nil, err
	}
	return res, nil
}

func (f *Fetcher) fetchAssets(ctx context.Context, ai *resolve_version.AssetIndex, dirs Dirs, res *Result, p *Progress) error {
	indexPath := filepath.Join(dirs.Assets, "indexes", ai.Id+".json")
	if err := f.FetchArtifact(ctx, ai.Url, indexPath, "", ai.Sha1, ai.Size, p); err != nil {
		return err
	}
	raw, err := os.ReadFile(indexPath)
	if err != nil {
		return err
	}
	var index AssetIndexFile
	if err := json.Unmarshal(raw, &index); err != nil {
		return fmt.Errorf("decode asset index %s: %w", ai.Id, err)
	}

	var copyRoot string
	switch {
	case index.MapToResources:
		copyRoot = filepath.Join(dirs.Game, "resources")
	case index.Virtual:
		copyRoot = filepath.Join(dirs.Assets, "virtual", ai.Id)
	}
	if copyRoot != "" {
		res.GameAssets = copyRoot
	}

	names := make([]string, 0, len(index.Objects))
	for name := range index.Objects {
		names = append(names, name)
	}
	slices.Sort(names)

	host := strings.TrimSuffix(f.AssetHost, "/")
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj := index.Objects[name]
		if len(obj.Hash) < 2 {
			return fmt.Errorf("asset %s: invalid hash %q", name, obj.Hash)
		}
		prefix := obj.Hash[:2]
		local := filepath.Join(dirs.Assets, "objects", prefix, obj.Hash)
		url := host + "/" + prefix + "/" + obj.Hash
		if err := f.FetchArtifact(ctx, url, local, name, obj.Hash, obj.Size, p); err != nil {
			return err
		}
		if copyRoot != "" {
			if err := copyAsset(local, filepath.Join(copyRoot, filepath.FromSlash(name)), obj.Size); err != nil {
				f.logger.Warn("failed to copy legacy asset", zap.String("asset", name), zap.Error(err))
			}
		}
	}
	return nil
}

func copyAsset(src, dst string, size int64) error {
	if stat, err := os.Stat(dst); err == nil && stat.Size() == size {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}
