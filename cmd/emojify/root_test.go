package main

import (
	"bytes"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smegmarip/stash-emojify-plugin/internal/imageio"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func detectorService(t *testing.T, facesJSON string) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/faces/detect", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"faces":` + facesJSON + `}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server.URL
}

func TestEmojify_WritesOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "party.jpg")
	require.NoError(t, imageio.Save(imaging.New(120, 120, color.White), input))

	serviceURL := detectorService(t, `[{"box":{"x":10,"y":10,"width":100,"height":100},
		"smiling_probability":0.05,"left_eye_open_probability":0.1,"right_eye_open_probability":0.1}]`)

	out, err := execute(t, "--service-url", serviceURL, "--out-dir", filepath.Join(dir, "out"), "--format", "png", input)
	require.NoError(t, err)

	expected := filepath.Join(dir, "out", "party.emoji.png")
	assert.Contains(t, out, expected)
	assert.FileExists(t, expected)
}

func TestEmojify_NoFaces(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "landscape.png")
	require.NoError(t, imageio.Save(imaging.New(40, 40, color.White), input))

	out, err := execute(t, "--service-url", detectorService(t, `[]`), input)
	require.NoError(t, err)

	assert.Contains(t, out, "no faces detected")
	assert.NoFileExists(t, filepath.Join(dir, "landscape.emoji.png"))
}

func TestEmojify_Errors(t *testing.T) {
	_, err := execute(t, "--detector", "opencv", "photo.jpg")
	assert.Error(t, err)

	_, err = execute(t, "--format", "webp", "photo.jpg")
	assert.Error(t, err)

	_, err = execute(t)
	assert.Error(t, err, "at least one input is required")

	_, err = execute(t, "--service-url", detectorService(t, `[]`), filepath.Join(t.TempDir(), "missing.jpg"))
	assert.EqualError(t, err, "1 of 1 inputs failed")
}

func TestAssetsExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "emoji")

	out, err := execute(t, "assets", "export", "--size", "32", dir)
	require.NoError(t, err)

	assert.Contains(t, out, dir)
	assert.FileExists(t, filepath.Join(dir, "smile.png"))
	assert.FileExists(t, filepath.Join(dir, "closed_frown.png"))
}
