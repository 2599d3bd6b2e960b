package downloader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"github.com/go-resty/resty/v2"
	mc_launcher "github.com/mrmelon54/mc-launcher"
	"github.com/mrmelon54/mc-launcher/rules"
	"go.uber.org/zap"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultAssetHost     = "https://resources.download.minecraft.net"
	DefaultLibrariesHost = "https://libraries.minecraft.net/"
)

// FetchError is returned when an artifact could not be downloaded. Url is
// the address that failed.
type FetchError struct {
	Url string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.Url, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Progress is the running byte count of a download phase.
type Progress struct {
	Total int64
	Done  int64
}

func (p *Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Done) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}

type Fetcher struct {
	client *resty.Client
	events mc_launcher.Events
	logger *zap.Logger

	AssetHost     string
	LibrariesHost string
	Evaluator     rules.Evaluator
}

func NewFetcher(client *resty.Client, events mc_launcher.Events, logger *zap.Logger) *Fetcher {
	if events == nil {
		events = mc_launcher.NopEvents{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:        client,
		events:        events,
		logger:        logger.Named("download"),
		AssetHost:     DefaultAssetHost,
		LibrariesHost: DefaultLibrariesHost,
		Evaluator:     rules.NewEvaluator(),
	}
}

// FetchArtifact makes sure localPath holds the artifact. A local copy whose
// size and sha1 match (each only checked when known) is kept without any
// network access, anything else is downloaded once over the existing file.
// The size is counted into p before any I/O so progress stays monotonic.
func (f *Fetcher) FetchArtifact(ctx context.Context, url, localPath, label, sha1 string, size int64, p *Progress) error {
	if label == "" {
		label = filepath.Base(localPath)
	}
	if p != nil {
		p.Done += size
		f.events.Progress(p.Fraction(), label)
	}

	if valid(localPath, sha1, size) {
		return nil
	}
	if url == "" {
		return &FetchError{Url: localPath, Err: errors.New("missing local artifact without download url")}
	}
	f.logger.Debug("downloading", zap.String("url", url), zap.String("path", localPath))
	if err := f.download(ctx, url, localPath); err != nil {
		return &FetchError{Url: url, Err: err}
	}
	return nil
}

// FetchFile downloads a file of unknown size, verifying the hash when given.
func (f *Fetcher) FetchFile(ctx context.Context, url, localPath, sha1 string) error {
	return f.FetchArtifact(ctx, url, localPath, "", sha1, 0, nil)
}

func valid(localPath, sha1 string, size int64) bool {
	stat, err := os.Stat(localPath)
	if err != nil || stat.IsDir() {
		return false
	}
	if size > 0 && stat.Size() != size {
		return false
	}
	if sha1 == "" {
		return true
	}
	sum, err := fileSha1(localPath)
	if err != nil {
		return false
	}
	return strings.EqualFold(sum, sha1)
}

func fileSha1(p string) (string, error) {
	file, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer file.Close()
	h := sha1.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// download streams the body straight over localPath. The write is not
// atomic: an interrupted download leaves a truncated file which fails the
// size or hash check on the next launch.
func (f *Fetcher) download(ctx context.Context, url, localPath string) error {
	resp, err := f.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.IsError() {
		return fmt.Errorf("unexpected status: %s", resp.Status())
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return err
	}
	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}
