package test

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"testing"
)

func TestNewTestClient_GetHasBody(t *testing.T) {
	var body []byte
	srv := &Counter{Handler: http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		require.NotNil(t, req.Body)
		var err error
		body, err = io.ReadAll(req.Body)
		require.NoError(t, err)
		WriteJSON(rw, http.StatusOK, map[string]string{"name": "Notch"})
	})}

	var out struct {
		Name string `json:"name"`
	}
	resp, err := NewTestClient(srv).R().SetContext(context.Background()).SetResult(&out).Get("https://example.com/minecraft/profile")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Empty(t, body)
	assert.Equal(t, "Notch", out.Name)
	assert.Equal(t, int64(1), srv.Count())
}
