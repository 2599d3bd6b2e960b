package manifest

import (
	"context"
	_ "embed"
	"github.com/julienschmidt/httprouter"
	"github.com/mrmelon54/mc-launcher/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

//go:embed piston-meta-manifest.json
var pistonMetaManifestJson []byte

func manifestRouter() *httprouter.Router {
	r := httprouter.New()
	r.GET("/mc/game/version_manifest_v2.json", func(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write(pistonMetaManifestJson)
	})
	return r
}

func writeLocal(t *testing.T, dir, id, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, id), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, id, id+".json"), []byte(body), 0644))
}

func TestStore_Load(t *testing.T) {
	dir := t.TempDir()
	writeLocal(t, dir, "1.20.4", `{"id":"1.20.4","type":"local","releaseTime":"2023-12-07T12:56:20+00:00"}`)
	writeLocal(t, dir, "fabric-loader-0.15.7-1.20.4", `{"id":"fabric-loader-0.15.7-1.20.4","inheritsFrom":"1.20.4","type":"release","releaseTime":"2024-02-14T10:00:00+00:00"}`)
	writeLocal(t, dir, "broken", `{"id":`)

	s := NewStore(test.NewTestClient(manifestRouter()), McVersionManifest, dir, zaptest.NewLogger(t))
	require.NoError(t, s.Load(context.Background()))

	// remote metadata replaces the local entry with the same id
	e, ok := s.Entry("1.20.4")
	require.True(t, ok)
	assert.False(t, e.Local)
	assert.Equal(t, "release", e.Type)
	assert.Equal(t, "c98adde5094a3041f486b4d42d0386cf87310559", e.Sha1)

	e, ok = s.Entry("fabric-loader-0.15.7-1.20.4")
	require.True(t, ok)
	assert.True(t, e.Local)
	assert.Empty(t, e.Url)

	_, ok = s.Entry("broken")
	assert.False(t, ok)

	latest, ok := s.Latest("release")
	assert.True(t, ok)
	assert.Equal(t, "1.20.4", latest)

	releases := s.Entries("release")
	ids := make([]string, 0, len(releases))
	for _, i := range releases {
		ids = append(ids, i.Id)
	}
	assert.Equal(t, []string{"fabric-loader-0.15.7-1.20.4", "1.20.4", "1.20.3"}, ids)
}

func TestStore_LoadRemoteFailure(t *testing.T) {
	dir := t.TempDir()
	writeLocal(t, dir, "1.8.9", `{"id":"1.8.9","type":"release","releaseTime":"2015-12-03T09:24:39+00:00"}`)

	r := httprouter.New()
	r.GET("/mc/game/version_manifest_v2.json", func(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		http.Error(rw, "502 Bad Gateway", http.StatusBadGateway)
	})
	s := NewStore(test.NewTestClient(r), "", dir, nil)
	assert.Error(t, s.Load(context.Background()))

	_, ok := s.Entry("1.8.9")
	assert.True(t, ok)
	_, ok = s.Latest("release")
	assert.False(t, ok)
}

func TestStore_Refresh(t *testing.T) {
	counter := &test.Counter{Handler: manifestRouter()}
	s := NewStore(test.NewTestClient(counter), McVersionManifest, t.TempDir(), nil)
	s.Refresh()
	assert.Equal(t, int64(1), counter.Count())
	_, ok := s.Entry("24w14a")
	assert.True(t, ok)
}
