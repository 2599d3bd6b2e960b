package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/MrMelon54/rescheduler"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

const McVersionManifest = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

type PistonMetaManifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []struct {
		Id          string    `json:"id"`
		Type        string    `json:"type"`
		Url         string    `json:"url"`
		ReleaseTime time.Time `json:"releaseTime"`
		Sha1        string    `json:"sha1"`
	} `json:"versions"`
}

// Entry is the download metadata of one version. Local entries have no url.
type Entry struct {
	Id          string
	Type        string
	ReleaseTime time.Time
	Sha1        string
	Url         string
	Local       bool
}

// Store merges the remote version index with versions installed under the
// versions directory. Remote entries win over local ones with the same id.
type Store struct {
	client      *resty.Client
	url         string
	versionsDir string
	logger      *zap.Logger

	r       *rescheduler.Rescheduler
	cacheMu *sync.RWMutex
	entries map[string]Entry
	latest  map[string]string
}

func NewStore(client *resty.Client, url, versionsDir string, logger *zap.Logger) *Store {
	if url == "" {
		url = McVersionManifest
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		client:      client,
		url:         url,
		versionsDir: versionsDir,
		logger:      logger.Named("manifest"),
		cacheMu:     new(sync.RWMutex),
		entries:     make(map[string]Entry),
		latest:      make(map[string]string),
	}
	s.r = rescheduler.NewRescheduler(func() {
		if err := s.Load(context.Background()); err != nil {
			s.logger.Warn("refresh failed", zap.Error(err))
		}
	})
	return s
}

// Load rebuilds the entry map. A failing remote fetch leaves the local
// entries in place and is returned so the caller can report it.
func (s *Store) Load(ctx context.Context) error {
	entries := s.localEntries()
	remote, err := s.remoteManifest(ctx)
	latest := make(map[string]string)
	if err == nil {
		latest["release"] = remote.Latest.Release
		latest["snapshot"] = remote.Latest.Snapshot
		for _, v := range remote.Versions {
			entries[v.Id] = Entry{
				Id:          v.Id,
				Type:        v.Type,
				ReleaseTime: v.ReleaseTime,
				Sha1:        v.Sha1,
				Url:         v.Url,
			}
		}
	}

	s.cacheMu.Lock()
	s.entries = entries
	if err == nil {
		s.latest = latest
	}
	s.cacheMu.Unlock()
	return err
}

// Refresh reloads the manifest and waits for it. Overlapping calls are
// coalesced by the rescheduler.
func (s *Store) Refresh() {
	s.r.Run()
	s.r.Wait()
}

func (s *Store) remoteManifest(ctx context.Context) (*PistonMetaManifest, error) {
	var manifest PistonMetaManifest
	resp, err := s.client.R().SetContext(ctx).ForceContentType("application/json").SetResult(&manifest).Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch manifest: %s", resp.Status())
	}
	return &manifest, nil
}

type localDescriptor struct {
	Id          string    `json:"id"`
	Type        string    `json:"type"`
	ReleaseTime time.Time `json:"releaseTime"`
}

func (s *Store) localEntries() map[string]Entry {
	entries := make(map[string]Entry)
	dirs, err := os.ReadDir(s.versionsDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to read versions directory", zap.Error(err))
		}
		return entries
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.versionsDir, d.Name(), d.Name()+".json"))
		if err != nil {
			continue
		}
		var desc localDescriptor
		if err := json.Unmarshal(raw, &desc); err != nil {
			s.logger.Warn("skipping unreadable descriptor", zap.String("id", d.Name()), zap.Error(err))
			continue
		}
		if desc.Id == "" {
			desc.Id = d.Name()
		}
		entries[desc.Id] = Entry{
			Id:          desc.Id,
			Type:        desc.Type,
			ReleaseTime: desc.ReleaseTime,
			Local:       true,
		}
	}
	return entries
}

func (s *Store) Entry(id string) (Entry, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Latest returns the newest id of a kind ("release" or "snapshot") as
// announced by the remote index.
func (s *Store) Latest(kind string) (string, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	id, ok := s.latest[kind]
	return id, ok && id != ""
}

// Entries lists the entries newest first, optionally filtered by type.
func (s *Store) Entries(kind string) []Entry {
	s.cacheMu.RLock()
	a := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if kind == "" || e.Type == kind {
			a = append(a, e)
		}
	}
	s.cacheMu.RUnlock()
	slices.SortFunc(a, func(a, b Entry) int {
		if c := b.ReleaseTime.Compare(a.ReleaseTime); c != 0 {
			return c
		}
		if a.Id < b.Id {
			return -1
		}
		if a.Id > b.Id {
			return 1
		}
		return 0
	})
	return a
}
