package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stashapp/stash/pkg/plugin/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smegmarip/stash-emojify-plugin/internal/config"
	"github.com/smegmarip/stash-emojify-plugin/internal/imageio"
	"github.com/smegmarip/stash-emojify-plugin/internal/stash"
)

// ============================================================================
// Argument helpers
// ============================================================================

func TestIDArg(t *testing.T) {
	args := map[string]interface{}{"f": float64(42), "i": 7, "s": " 19 ", "b": true}

	assert.Equal(t, "42", idArg(args, "f"))
	assert.Equal(t, "7", idArg(args, "i"))
	assert.Equal(t, "19", idArg(args, "s"))
	assert.Equal(t, "", idArg(args, "b"))
	assert.Equal(t, "", idArg(args, "missing"))
}

func TestIntArg(t *testing.T) {
	args := map[string]interface{}{"f": float64(10), "i": 3, "s": "25", "bad": "many"}

	assert.Equal(t, 10, intArg(args, "f"))
	assert.Equal(t, 3, intArg(args, "i"))
	assert.Equal(t, 25, intArg(args, "s"))
	assert.Equal(t, 0, intArg(args, "bad"))
	assert.Equal(t, 0, intArg(args, "missing"))
}

func TestIsEmojiOutput(t *testing.T) {
	assert.True(t, isEmojiOutput("/photos/party.emoji.jpg"))
	assert.True(t, isEmojiOutput("/photos/Party.EMOJI.PNG"))
	assert.False(t, isEmojiOutput("/photos/party.jpg"))
	assert.False(t, isEmojiOutput("/photos.emoji.d/party.jpg"))
}

func TestNormalizeHost(t *testing.T) {
	s := &Service{serverConnection: common.StashServerConnection{Scheme: "http", Host: "stash.lan", Port: 9999}}

	assert.Equal(t, "http://stash.lan:9999/image/1/image?t=2", s.NormalizeHost("http://0.0.0.0:9999/image/1/image?t=2"))
	assert.Equal(t, "http://other:9999/image/1", s.NormalizeHost("http://other:9999/image/1"))
}

func TestBatchStats(t *testing.T) {
	stats := &BatchStats{}

	stats.add(&ImageOutcome{OutputPath: "/out/a.emoji.jpg", Faces: []FaceSummary{{Applied: true}}}, nil)
	stats.add(&ImageOutcome{Faces: []FaceSummary{}}, nil)
	stats.add(&ImageOutcome{Skipped: "emojify output"}, nil)
	stats.add(&ImageOutcome{Faces: []FaceSummary{{Applied: false}}}, nil)
	stats.add(nil, errors.New("boom"))

	assert.Equal(t, 5, stats.Processed)
	assert.Equal(t, 1, stats.Emojified)
	assert.Equal(t, 1, stats.NoFaces)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, []string{"/out/a.emoji.jpg"}, stats.Outputs)
	assert.Equal(t, "5 processed, 1 emojified, 1 without faces, 2 skipped, 1 failed", stats.String())
}

func TestBatchStats_OutputKeptWhenTaggingFails(t *testing.T) {
	stats := &BatchStats{}

	stats.add(&ImageOutcome{OutputPath: "/out/b.emoji.png"}, errors.New("failed to update image"))

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Emojified)
	assert.Equal(t, []string{"/out/b.emoji.png"}, stats.Outputs)
}

// ============================================================================
// Run
// ============================================================================

type graphqlCall struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
	body      string
}

// fakeServer answers GraphQL queries by substring, with fixed data or a handler
// that builds the data from the request variables
type fakeServer struct {
	mu       sync.Mutex
	routes   map[string]string
	handlers map[string]func(vars map[string]interface{}) string
	calls    []graphqlCall
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var call graphqlCall
	_ = json.Unmarshal(body, &call)
	call.body = string(body)

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	for key, handler := range f.handlers {
		if strings.Contains(call.Query, key) {
			_, _ = w.Write([]byte(`{"data":` + handler(call.Variables) + `}`))
			return
		}
	}
	for key, data := range f.routes {
		if strings.Contains(call.Query, key) {
			_, _ = w.Write([]byte(`{"data":` + data + `}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"errors":[{"message":"unexpected query"}]}`))
}

func (f *fakeServer) count(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.Contains(c.body, substr) {
			n++
		}
	}
	return n
}

// variables returns the variables of every call whose query contains key
func (f *fakeServer) variables(key string) []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]interface{}
	for _, c := range f.calls {
		if strings.Contains(c.Query, key) {
			out = append(out, c.Variables)
		}
	}
	return out
}

// lookup walks nested JSON objects
func lookup(v interface{}, keys ...string) interface{} {
	for _, key := range keys {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil
		}
		v = m[key]
	}
	return v
}

func connectionFor(t *testing.T, server *httptest.Server) common.StashServerConnection {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return common.StashServerConnection{Scheme: "http", Host: u.Hostname(), Port: port}
}

func newDetectorService(t *testing.T, facesJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/faces/detect", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"faces":` + facesJSON + `}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func runTask(t *testing.T, facesJSON string, args map[string]interface{}) (*fakeServer, string, *common.PluginOutput) {
	t.Helper()

	dir := t.TempDir()
	src := filepath.Join(dir, "party.png")
	require.NoError(t, imageio.Save(imaging.New(200, 200, color.White), src))
	outDir := filepath.Join(dir, "out")

	detectorServer := newDetectorService(t, facesJSON)

	settings, _ := json.Marshal(map[string]interface{}{
		"detectorServiceUrl": detectorServer.URL,
		"outputDir":          outDir,
		"cooldownSeconds":    0,
	})
	image, _ := json.Marshal(map[string]interface{}{
		"id": "5", "title": "party", "paths": map[string]string{"image": ""},
		"files": []map[string]interface{}{{"path": src, "width": 200, "height": 200}},
		"tags":  []interface{}{},
	})

	fake := &fakeServer{routes: map[string]string{
		"configuration": `{"configuration":{"plugins":{"emojify":` + string(settings) + `}}}`,
		"findImage(":    `{"findImage":` + string(image) + `}`,
		"findTags":      `{"findTags":{"count":1,"tags":[{"id":"7","name":"tag"}]}}`,
		"imageUpdate":   `{"imageUpdate":{"id":"5"}}`,
	}}
	stashServer := httptest.NewServer(fake)
	t.Cleanup(stashServer.Close)

	argsJSON, _ := json.Marshal(args)
	input := common.PluginInput{ServerConnection: connectionFor(t, stashServer)}
	require.NoError(t, json.Unmarshal(argsJSON, &input.Args))

	output := &common.PluginOutput{}
	require.NoError(t, NewService().Run(input, output))

	return fake, outDir, output
}

func TestRun_EmojifyImage(t *testing.T) {
	faces := `[{"box":{"x":50,"y":50,"width":100,"height":100},"smiling_probability":0.9,
		"left_eye_open_probability":0.9,"right_eye_open_probability":0.9}]`

	fake, outDir, output := runTask(t, faces, map[string]interface{}{"mode": "emojifyImage", "imageId": float64(5)})

	require.Nil(t, output.Error)
	require.NotNil(t, output.Output)

	_, err := os.Stat(filepath.Join(outDir, "party.emoji.png"))
	assert.NoError(t, err, "emojified copy should be written")
	assert.Equal(t, 1, fake.count("imageUpdate"), "source image should be tagged")
}

func TestRun_EmojifyImageNoFaces(t *testing.T) {
	fake, outDir, output := runTask(t, `[]`, map[string]interface{}{"mode": "emojifyImage", "imageId": "5"})

	require.Nil(t, output.Error)
	assert.NoDirExists(t, outDir)
	assert.Equal(t, 1, fake.count("imageUpdate"), "no-faces tag should be applied")
}

func TestRun_Errors(t *testing.T) {
	_, _, output := runTask(t, `[]`, map[string]interface{}{"mode": "emojifyImage"})
	require.NotNil(t, output.Error)
	assert.Contains(t, *output.Error, "imageId")

	_, _, output = runTask(t, `[]`, map[string]interface{}{"mode": "dance"})
	require.NotNil(t, output.Error)
	assert.Contains(t, *output.Error, "unknown mode")
}

// ============================================================================
// Batch modes
// ============================================================================

const smilingFaceJSON = `[{"box":{"x":50,"y":50,"width":100,"height":100},"smiling_probability":0.9,
	"left_eye_open_probability":0.9,"right_eye_open_probability":0.9}]`

var tagIDsByName = map[string]string{"Emojified": "7", "Emojify No Faces": "8"}

type batchEnv struct {
	fake    *fakeServer
	service *Service
	outDir  string
	detects int32
	conn    common.StashServerConnection
}

// newBatchEnv serves count local images through findImages, paged as Stash does
func newBatchEnv(t *testing.T, count int, tagIDs []string, onDetect func(env *batchEnv, n int32)) *batchEnv {
	t.Helper()

	dir := t.TempDir()
	env := &batchEnv{service: NewService(), outDir: filepath.Join(dir, "out")}

	tags := []map[string]string{}
	for _, id := range tagIDs {
		tags = append(tags, map[string]string{"id": id, "name": "tag"})
	}

	var images []map[string]interface{}
	for i := 1; i <= count; i++ {
		src := filepath.Join(dir, fmt.Sprintf("img-%d.png", i))
		require.NoError(t, imageio.Save(imaging.New(200, 200, color.White), src))
		images = append(images, map[string]interface{}{
			"id": strconv.Itoa(i), "title": "", "paths": map[string]string{"image": ""},
			"files": []map[string]interface{}{{"path": src, "width": 200, "height": 200}},
			"tags":  tags,
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/faces/detect", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&env.detects, 1)
		if onDetect != nil {
			onDetect(env, n)
		}
		_, _ = w.Write([]byte(`{"faces":` + smilingFaceJSON + `}`))
	})
	detectorServer := httptest.NewServer(mux)
	t.Cleanup(detectorServer.Close)

	settings, _ := json.Marshal(map[string]interface{}{
		"detectorServiceUrl": detectorServer.URL,
		"outputDir":          env.outDir,
		"cooldownSeconds":    0,
		"maxBatchSize":       2,
		"scanAfterWrite":     true,
	})

	env.fake = &fakeServer{
		routes: map[string]string{
			"configuration": `{"configuration":{"plugins":{"emojify":` + string(settings) + `}}}`,
			"findGallery":   `{"findGallery":{"id":"3","title":"Party","folder":null,"tags":[],"image_count":4}}`,
			"imageUpdate":   `{"imageUpdate":{"id":"1"}}`,
			"metadataScan":  `{"metadataScan":"99"}`,
		},
		handlers: map[string]func(vars map[string]interface{}) string{
			"findTags": func(vars map[string]interface{}) string {
				name, _ := lookup(vars, "filter", "name", "value").(string)
				id, ok := tagIDsByName[name]
				if !ok {
					return `{"findTags":{"count":0,"tags":[]}}`
				}
				return fmt.Sprintf(`{"findTags":{"count":1,"tags":[{"id":%q,"name":%q}]}}`, id, name)
			},
			"findImages": func(vars map[string]interface{}) string {
				page, _ := lookup(vars, "filter", "page").(float64)
				perPage, _ := lookup(vars, "filter", "per_page").(float64)
				start := (int(page) - 1) * int(perPage)
				end := start + int(perPage)
				if start > len(images) {
					start = len(images)
				}
				if end > len(images) {
					end = len(images)
				}
				data, _ := json.Marshal(map[string]interface{}{
					"findImages": map[string]interface{}{"count": len(images), "images": images[start:end]},
				})
				return string(data)
			},
		},
	}
	stashServer := httptest.NewServer(env.fake)
	t.Cleanup(stashServer.Close)
	env.conn = connectionFor(t, stashServer)

	return env
}

func (env *batchEnv) run(t *testing.T, args map[string]interface{}) *common.PluginOutput {
	t.Helper()
	argsJSON, _ := json.Marshal(args)
	input := common.PluginInput{ServerConnection: env.conn}
	require.NoError(t, json.Unmarshal(argsJSON, &input.Args))

	output := &common.PluginOutput{}
	require.NoError(t, env.service.Run(input, output))
	return output
}

func (env *batchEnv) written(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(env.outDir)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
}

func TestRun_BatchModes(t *testing.T) {
	tests := []struct {
		name           string
		args           map[string]interface{}
		images         int
		wantOutput     string
		wantWritten    int
		wantPages      int
		filterKey      string
		filterModifier string
		filterValue    []interface{}
	}{
		{
			name:           "new images exclude outcome tags",
			args:           map[string]interface{}{"mode": "emojifyImagesNew"},
			images:         3,
			wantOutput:     "New image emojification completed: 3 processed, 3 emojified, 0 without faces, 0 skipped, 0 failed",
			wantWritten:    3,
			wantPages:      2,
			filterKey:      "tags",
			filterModifier: "EXCLUDES",
			filterValue:    []interface{}{"7", "8"},
		},
		{
			name:        "all images cut at limit",
			args:        map[string]interface{}{"mode": "emojifyImagesAll", "limit": float64(3)},
			images:      5,
			wantOutput:  "Image emojification completed: 3 processed, 3 emojified, 0 without faces, 0 skipped, 0 failed",
			wantWritten: 3,
			wantPages:   2,
		},
		{
			name:           "gallery images",
			args:           map[string]interface{}{"mode": "emojifyGallery", "galleryId": "3"},
			images:         4,
			wantOutput:     "Gallery emojification completed: 4 processed, 4 emojified, 0 without faces, 0 skipped, 0 failed",
			wantWritten:    4,
			wantPages:      2,
			filterKey:      "galleries",
			filterModifier: "INCLUDES",
			filterValue:    []interface{}{"3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newBatchEnv(t, tt.images, nil, nil)

			output := env.run(t, tt.args)

			require.Nil(t, output.Error)
			require.NotNil(t, output.Output)
			assert.Equal(t, tt.wantOutput, *output.Output.(*string))

			pages := env.fake.variables("findImages")
			assert.Len(t, pages, tt.wantPages)
			if tt.filterKey != "" {
				assert.Equal(t, tt.filterModifier, lookup(pages[0], "image_filter", tt.filterKey, "modifier"))
				assert.ElementsMatch(t, tt.filterValue, lookup(pages[0], "image_filter", tt.filterKey, "value"))
			} else {
				assert.Nil(t, lookup(pages[0], "image_filter", "tags"))
			}

			assert.Equal(t, tt.wantWritten, env.written(t))
			assert.Equal(t, 1, env.fake.count("metadataScan"))
		})
	}
}

func TestRun_ResetEmojified(t *testing.T) {
	env := newBatchEnv(t, 3, []string{"7"}, nil)

	output := env.run(t, map[string]interface{}{"mode": "resetEmojified"})

	require.Nil(t, output.Error)
	require.NotNil(t, output.Output)
	assert.Equal(t, "Reset 3 images", *output.Output.(*string))
	assert.Equal(t, 3, env.fake.count("imageUpdate"))
	assert.Equal(t, int32(0), atomic.LoadInt32(&env.detects))

	pages := env.fake.variables("findImages")
	require.NotEmpty(t, pages)
	assert.Equal(t, "INCLUDES", lookup(pages[0], "image_filter", "tags", "modifier"))
	assert.ElementsMatch(t, []interface{}{"7", "8"}, lookup(pages[0], "image_filter", "tags", "value"))
}

func TestRun_StopScansWrittenFiles(t *testing.T) {
	env := newBatchEnv(t, 4, nil, func(env *batchEnv, n int32) {
		if n == 2 {
			var stopped bool
			_ = env.service.Stop(struct{}{}, &stopped)
		}
	})

	output := env.run(t, map[string]interface{}{"mode": "emojifyImagesAll"})

	require.NotNil(t, output.Error)
	assert.Contains(t, *output.Error, "cancelled")
	assert.Equal(t, int32(2), atomic.LoadInt32(&env.detects), "no image after the stop is sent to the detector")
	assert.Equal(t, 1, env.written(t))
	assert.Equal(t, 1, env.fake.count("metadataScan"), "the file written before the stop is still scanned")
}

func TestApplyCooldown(t *testing.T) {
	s := &Service{config: &config.PluginConfig{CooldownSeconds: 60}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.ErrorIs(t, s.applyCooldown(ctx), errCancelled)
	assert.Less(t, time.Since(start), time.Second)

	s.config.CooldownSeconds = 0
	assert.NoError(t, s.applyCooldown(context.Background()))
}

func TestProcessBatch_StoppedBeforeStart(t *testing.T) {
	s := &Service{config: &config.PluginConfig{MaxBatchSize: 2}, stopping: true}

	stats, err := s.processBatch(context.Background(), make([]stash.Image, 3))
	assert.ErrorIs(t, err, errCancelled)
	assert.Equal(t, 0, stats.Processed)
}
