package ui

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	h, err := Handler()
	require.NoError(t, err)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func TestHandler_Index(t *testing.T) {
	w := serve(t, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>lr</title>")
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
}

func TestHandler_ClientRouteFallsBackToIndex(t *testing.T) {
	w := serve(t, "/sessions/01J0000000000000000000000")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>lr</title>")
}

func TestHandler_MissingAsset(t *testing.T) {
	w := serve(t, "/assets/app.js")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDistFS(t *testing.T) {
	sub, err := DistFS()
	require.NoError(t, err)
	f, err := sub.Open("index.html")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
