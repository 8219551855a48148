package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Corphon/MVScenePlanner/internal/config"
	"github.com/Corphon/MVScenePlanner/internal/di"
	"github.com/Corphon/MVScenePlanner/internal/models"
	"github.com/Corphon/MVScenePlanner/internal/services"
	"github.com/Corphon/MVScenePlanner/internal/storage"
	"github.com/Corphon/MVScenePlanner/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoProject = "demo"

type testEnv struct {
	router  *gin.Engine
	ws      *WebSocketManager
	metrics *utils.AppMetrics
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
}

func newTestEnv(t *testing.T, importRate int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(fs.Close)

	projects := storage.NewProjectStore(fs)
	_, err = projects.CreateProject(demoProject, "Demo")
	require.NoError(t, err)

	locks := services.NewLockManager()
	t.Cleanup(locks.Close)

	metrics := utils.NewAppMetrics(utils.NewMetricsCollector())
	ws := NewWebSocketManager(metrics.Collector())
	t.Cleanup(ws.Shutdown)

	svc := services.NewSceneService(storage.NewSceneStore(fs), projects, locks, nil)
	svc.SetNotifier(ws)
	svc.SetMetrics(metrics)

	container := di.NewContainer()
	container.Register(di.ServiceScene, svc)
	container.Register(di.ServiceWebSocket, ws)
	container.Register(di.ServiceMetrics, metrics)

	cfg := &config.Config{MaxUploadMB: 1, ImportRatePerMin: importRate, CORSOrigins: []string{"*"}}
	router, err := SetupRouter(cfg, container)
	require.NoError(t, err)

	limiter, err := di.Resolve[*RateLimiter](container, ServiceRateLimiter)
	require.NoError(t, err)
	t.Cleanup(limiter.Close)

	return &testEnv{router: router, ws: ws, metrics: metrics}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return e.serve(t, req)
}

func (e *testEnv) upload(t *testing.T, filename string, content []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/projects/demo/scenes/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.serve(t, req)
}

func (e *testEnv) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (e *testEnv) createScene(t *testing.T, lyrics string) models.Scene {
	t.Helper()
	rec, env := e.do(t, http.MethodPost, "/api/projects/demo/scenes", gin.H{"lyrics": lyrics})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var scene models.Scene
	require.NoError(t, json.Unmarshal(env.Data, &scene))
	return scene
}

func (e *testEnv) listScenes(t *testing.T) []models.Scene {
	t.Helper()
	rec, env := e.do(t, http.MethodGet, "/api/projects/demo/scenes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var scenes []models.Scene
	require.NoError(t, json.Unmarshal(env.Data, &scenes))
	return scenes
}

func lyricsOf(scenes []models.Scene) []string {
	out := make([]string, len(scenes))
	for i, s := range scenes {
		out[i] = s.Lyrics
	}
	return out
}

func TestCreateAndListScenes(t *testing.T) {
	env := newTestEnv(t, 10)

	first := env.createScene(t, "hello")
	assert.Equal(t, 1, first.Order)
	assert.Equal(t, models.DefaultStartTime, first.StartTime)
	second := env.createScene(t, "world")
	assert.Equal(t, 2, second.Order)

	rec, body := env.do(t, http.MethodPost, "/api/projects/demo/scenes", gin.H{
		"lyrics":             "opening",
		"start_time":         "0:01",
		"reference_scene_id": first.ID,
		"position":           "before",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.RequestID)

	assert.Equal(t, []string{"opening", "hello", "world"}, lyricsOf(env.listScenes(t)))
	assert.Equal(t, int64(4), env.metrics.Collector().GetCounterValue("api_responses_2xx"))
}

func TestCreateSceneErrors(t *testing.T) {
	env := newTestEnv(t, 10)
	env.createScene(t, "a")

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"missing reference", "/api/projects/demo/scenes",
			gin.H{"lyrics": "x", "reference_scene_id": "nope", "position": "after"},
			http.StatusNotFound, ErrorReferenceNotFound},
		{"bad position", "/api/projects/demo/scenes",
			gin.H{"lyrics": "x", "reference_scene_id": "nope", "position": "middle"},
			http.StatusBadRequest, ErrorValidation},
		{"position without reference", "/api/projects/demo/scenes",
			gin.H{"lyrics": "x", "position": "after"},
			http.StatusBadRequest, ErrorValidation},
		{"bad start time", "/api/projects/demo/scenes",
			gin.H{"lyrics": "x", "start_time": "1:2"},
			http.StatusBadRequest, ErrorValidation},
		{"unknown project", "/api/projects/other/scenes",
			gin.H{"lyrics": "x"},
			http.StatusNotFound, ErrorProjectNotFound},
		{"invalid project id", "/api/projects/bad.id/scenes",
			gin.H{"lyrics": "x"},
			http.StatusBadRequest, ErrorValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}

	assert.Len(t, env.listScenes(t), 1)
}

func TestMalformedJSON(t *testing.T) {
	env := newTestEnv(t, 10)

	req := httptest.NewRequest(http.MethodPost, "/api/projects/demo/scenes", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec, body := env.serve(t, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorBadRequest, body.Error.Code)
}

func TestGetUpdateDeleteScene(t *testing.T) {
	env := newTestEnv(t, 10)
	a := env.createScene(t, "a")
	env.createScene(t, "b")
	c := env.createScene(t, "c")

	rec, body := env.do(t, http.MethodGet, "/api/projects/demo/scenes/"+a.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Scene
	require.NoError(t, json.Unmarshal(body.Data, &got))
	assert.Equal(t, "a", got.Lyrics)

	rec, body = env.do(t, http.MethodGet, "/api/projects/demo/scenes/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrorSceneNotFound, body.Error.Code)

	rec, _ = env.do(t, http.MethodPut, "/api/projects/demo/scenes/"+c.ID, gin.H{
		"description":   "finale",
		"image_file_id": "img_1",
		"order":         1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	scenes := env.listScenes(t)
	assert.Equal(t, []string{"c", "a", "b"}, lyricsOf(scenes))
	assert.Equal(t, "finale", scenes[0].Description)
	require.NotNil(t, scenes[0].ImageFileID)
	assert.Equal(t, "img_1", *scenes[0].ImageFileID)

	rec, body = env.do(t, http.MethodPut, "/api/projects/demo/scenes/"+c.ID, gin.H{"order": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorValidation, body.Error.Code)

	rec, _ = env.do(t, http.MethodDelete, "/api/projects/demo/scenes/"+a.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	scenes = env.listScenes(t)
	assert.Equal(t, []string{"c", "b"}, lyricsOf(scenes))
	assert.Equal(t, 2, scenes[1].Order)

	rec, _ = env.do(t, http.MethodDelete, "/api/projects/demo/scenes/"+a.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReorderScenes(t *testing.T) {
	env := newTestEnv(t, 10)
	a := env.createScene(t, "a")
	b := env.createScene(t, "b")
	c := env.createScene(t, "c")

	rec, _ := env.do(t, http.MethodPost, "/api/projects/demo/scenes/reorder",
		gin.H{"scene_ids": []string{c.ID, a.ID, b.ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"c", "a", "b"}, lyricsOf(env.listScenes(t)))

	rec, body := env.do(t, http.MethodPost, "/api/projects/demo/scenes/reorder",
		gin.H{"scene_ids": []string{a.ID, b.ID}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorValidation, body.Error.Code)
	assert.Equal(t, []string{"c", "a", "b"}, lyricsOf(env.listScenes(t)))

	rec, body = env.do(t, http.MethodPost, "/api/projects/demo/scenes/reorder", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorBadRequest, body.Error.Code)
}

func TestImportScenes(t *testing.T) {
	env := newTestEnv(t, 10)
	env.createScene(t, "intro")

	csv := "開始時間,歌詞,シーン説明\n0:05,first,night\nlater,bad time\n1:00,second,day\n"
	rec, body := env.upload(t, "song.csv", []byte(csv))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2 scenes imported, 1 rows skipped", body.Message)

	var result services.ImportResult
	require.NoError(t, json.Unmarshal(body.Data, &result))
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, []string{`scene 2: invalid start time "later"`}, result.Warnings)
	require.Len(t, result.Scenes, 2)
	assert.Equal(t, 2, result.Scenes[0].Order)

	assert.Equal(t, []string{"intro", "first", "second"}, lyricsOf(env.listScenes(t)))
	assert.Equal(t, int64(2), env.metrics.Collector().GetCounterValue("imported_scenes_total"))
}

func TestImportErrors(t *testing.T) {
	env := newTestEnv(t, 100)

	rec, body := env.upload(t, "song.pdf", []byte("x"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, ErrorUnsupportedFormat, body.Error.Code)

	rec, body = env.upload(t, "song.csv", []byte("start_time,lyrics\nnow,x\n"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, ErrorEmptyImport, body.Error.Code)
	var data struct {
		Warnings []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, []string{`scene 1: invalid start time "now"`}, data.Warnings)

	rec, body = env.upload(t, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorFileMissing, body.Error.Code)

	big := bytes.Repeat([]byte("a"), 1<<20+10)
	rec, body = env.upload(t, "big.txt", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, ErrorFileTooLarge, body.Error.Code)

	assert.Empty(t, env.listScenes(t))
}

func TestImportRateLimit(t *testing.T) {
	env := newTestEnv(t, 1)

	rec, _ := env.upload(t, "a.txt", []byte("la\n"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := env.upload(t, "a.txt", []byte("la\n"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, ErrorRateLimited, body.Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// 其他接口不受导入限流影响
	rec, _ = env.do(t, http.MethodGet, "/api/projects/demo/scenes", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	env := newTestEnv(t, 10)
	const id = "3f2b8c1e-5d4a-4b6c-9e7f-0a1b2c3d4e5f"

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, id)
	rec, body := env.serve(t, req)

	assert.Equal(t, id, rec.Header().Get(requestIDHeader))
	assert.Equal(t, id, body.RequestID)

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid")
	rec, _ = env.serve(t, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(requestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 10)
	env.createScene(t, "a")

	rec, body := env.do(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Metrics   map[string]interface{} `json:"metrics"`
		Websocket map[string]interface{} `json:"websocket"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.NotEmpty(t, data.Metrics)
	assert.EqualValues(t, 0, data.Websocket["total_connections"])
}

func TestProjectWebSocketReceivesSceneChanges(t *testing.T) {
	env := newTestEnv(t, 10)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/projects/demo"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	readJSON := func() map[string]interface{} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg map[string]interface{}
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	welcome := readJSON()
	assert.Equal(t, "connected", welcome["type"])
	assert.Equal(t, demoProject, welcome["project_id"])
	require.Eventually(t, func() bool { return env.ws.ClientCount(demoProject) == 1 },
		time.Second, 10*time.Millisecond)

	scene := env.createScene(t, "pushed")

	event := readJSON()
	assert.Equal(t, services.EventScenesChanged, event["type"])
	assert.Equal(t, string(services.ActionCreated), event["action"])
	assert.Equal(t, []interface{}{scene.ID}, event["scene_ids"])

	conn.Close()
	require.Eventually(t, func() bool { return env.ws.ClientCount(demoProject) == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestProjectWebSocketUnknownProject(t *testing.T) {
	env := newTestEnv(t, 10)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/projects/nope"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
