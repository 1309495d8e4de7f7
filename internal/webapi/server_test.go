package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-studio/internal/catalog"
	"photo-studio/internal/gateway"
	"photo-studio/internal/imaging"
	"photo-studio/internal/presets"
	"photo-studio/internal/session"
	"photo-studio/internal/studio"
)

type fakeGateway struct {
	mu          sync.Mutex
	prompts     []string
	GenerateErr error

	// Started and Release, when set, hold generation until Release closes.
	Started chan struct{}
	Release chan struct{}
}

func (g *fakeGateway) GenerateEditedImage(ctx context.Context, prompt string, _ imaging.Image, _ *imaging.Image) (imaging.Image, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	started, release, genErr := g.Started, g.Release, g.GenerateErr
	g.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return imaging.Image{}, ctx.Err()
		}
	}
	if genErr != nil {
		return imaging.Image{}, genErr
	}
	return imaging.Image{MIMEType: "image/png", Data: []byte("result")}, nil
}

func (g *fakeGateway) AnalyzeGender(context.Context, imaging.Image) (catalog.Gender, error) {
	return catalog.Male, nil
}

func (g *fakeGateway) DescribeImage(context.Context, imaging.Image) (string, error) {
	return "ชายใส่เสื้อเชิ้ต", nil
}

func (g *fakeGateway) EnhancePrompt(_ context.Context, text string) (string, error) {
	return "ปรับปรุง: " + text, nil
}

func (g *fakeGateway) Explain(context.Context, string) (string, error) {
	return "AI จะเปลี่ยนฉากหลัง", nil
}

func testPNG(t *testing.T, w, h int) imaging.Image {
	t.Helper()
	pic := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pic.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, pic))
	return imaging.Image{MIMEType: "image/png", Data: buf.Bytes()}
}

type testServer struct {
	srv *httptest.Server
	gw  *fakeGateway
	hub *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gw := &fakeGateway{}
	hub := NewHub(zerolog.Nop())
	store := session.NewStore(session.Options{
		New: hub.SessionFactory(studio.Options{Gateway: gw, TickInterval: -1}),
	})
	t.Cleanup(store.Close)

	kv, err := presets.NewFileStore(t.TempDir())
	require.NoError(t, err)

	s := New(Options{
		Sessions: store,
		Presets:  presets.NewLibrary(kv, zerolog.Nop()),
		Hub:      hub,
		Logger:   zerolog.Nop(),
	})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, gw: gw, hub: hub}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func (ts *testServer) create(t *testing.T) string {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var v struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &v))
	require.NotEmpty(t, v.ID)
	return v.ID
}

type stateJSON struct {
	Mode         string `json:"mode"`
	Gender       string `json:"gender"`
	HasPrimary   bool   `json:"has_primary"`
	HasOutfit    bool   `json:"has_outfit"`
	CanGenerate  bool   `json:"can_generate"`
	Result       string `json:"result"`
	EditorPrompt string `json:"editor_prompt"`
	Details      string `json:"details"`
	AspectRatio  string `json:"aspect_ratio"`
	RetryAfter   int    `json:"retry_after"`
	Error        string `json:"error"`
	Selection    struct {
		Background string `json:"background"`
	} `json:"selection"`
}

func decodeState(t *testing.T, body []byte) stateJSON {
	t.Helper()
	var st stateJSON
	require.NoError(t, json.Unmarshal(body, &st))
	return st
}

func TestStudioFlow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	base := "/api/sessions/" + id

	resp, body := ts.do(t, http.MethodPost, base+"/image", imageRequest{DataURL: testPNG(t, 40, 40).DataURL()})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	st := decodeState(t, body)
	assert.True(t, st.HasPrimary)
	assert.Equal(t, string(catalog.Male), st.Gender)

	bg := catalog.Default().Options(catalog.Background, "")[1].Label
	resp, body = ts.do(t, http.MethodPost, base+"/styles", styleRequest{Category: string(catalog.Background), Value: bg})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, bg, decodeState(t, body).Selection.Background)

	resp, body = ts.do(t, http.MethodPost, base+"/fields", map[string]any{"details": " ยิ้ม ", "aspect_ratio": "1:1"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	st = decodeState(t, body)
	assert.Equal(t, "ยิ้ม", st.Details)
	assert.Equal(t, "1:1", st.AspectRatio)

	resp, body = ts.do(t, http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	st = decodeState(t, body)
	assert.True(t, strings.HasPrefix(st.Result, "data:image/png;base64,"))
	require.Len(t, ts.gw.prompts, 1)
	assert.Contains(t, ts.gw.prompts[0], "male")

	resp, body = ts.do(t, http.MethodGet, base+"/result", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("content-type"))
	assert.Equal(t, []byte("result"), body)

	resp, body = ts.do(t, http.MethodPost, base+"/explain", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var exp struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(body, &exp))
	assert.Equal(t, "AI จะเปลี่ยนฉากหลัง", exp.Text)
}

func TestGenerateSurvivesClientDisconnect(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	base := "/api/sessions/" + id

	resp, _ := ts.do(t, http.MethodPost, base+"/image", imageRequest{DataURL: testPNG(t, 20, 20).DataURL()})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ts.gw.mu.Lock()
	ts.gw.Started = make(chan struct{})
	ts.gw.Release = make(chan struct{})
	started, release := ts.gw.Started, ts.gw.Release
	ts.gw.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.srv.URL+base+"/generate", nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		resp, err := ts.srv.Client().Do(req)
		if err == nil {
			resp.Body.Close()
		}
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("generation did not start")
	}
	cancel()
	require.Error(t, <-done)

	// Give the server time to notice the closed connection before the
	// backend answers.
	time.Sleep(50 * time.Millisecond)
	close(release)

	assert.Eventually(t, func() bool {
		_, body := ts.do(t, http.MethodGet, base, nil)
		var v struct {
			State stateJSON `json:"state"`
		}
		if err := json.Unmarshal(body, &v); err != nil {
			return false
		}
		return strings.HasPrefix(v.State.Result, "data:image/png;base64,")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestMultipartUpload(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "face.png")
	require.NoError(t, err)
	_, err = fw.Write(testPNG(t, 10, 10).Data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := ts.srv.Client().Post(ts.srv.URL+"/api/sessions/"+id+"/outfit", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.True(t, decodeState(t, body).HasOutfit)
}

func TestGenerateValidation(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	resp, body := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/generate", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var e apiError
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "การสร้างพรอมต์จำเป็นต้องใช้รูปภาพใบหน้าอ้างอิง", e.Error)
	assert.Empty(t, ts.gw.prompts)
}

func TestGenerateRateLimited(t *testing.T) {
	ts := newTestServer(t)
	ts.gw.GenerateErr = gateway.ParseAPIError("gemini", 429, []byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED","details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"9s"}]}}`))
	id := ts.create(t)
	base := "/api/sessions/" + id

	resp, _ := ts.do(t, http.MethodPost, base+"/image", imageRequest{DataURL: testPNG(t, 20, 20).DataURL()})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, base+"/generate", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var e apiError
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "rate_limit", e.Category)
	assert.Equal(t, 9, e.RetryAfter)

	resp, _ = ts.do(t, http.MethodPost, base+"/generate", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "9", resp.Header.Get("Retry-After"))
	assert.Len(t, ts.gw.prompts, 1)
}

func TestEditorEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	base := "/api/sessions/" + id

	resp, body := ts.do(t, http.MethodPost, base+"/mode", modeRequest{Mode: "editor"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "editor", decodeState(t, body).Mode)

	resp, body = ts.do(t, http.MethodPost, base+"/fields", map[string]any{"editor_prompt": "ลบพื้นหลัง"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, base+"/enhance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "ปรับปรุง: ลบพื้นหลัง", decodeState(t, body).EditorPrompt)

	resp, _ = ts.do(t, http.MethodPost, base+"/analyze", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, base+"/mode", modeRequest{Mode: "video"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPost, base+"/repair", repairRequest{SubMode: "restore"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownSession(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(t, http.MethodGet, "/api/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/api/sessions/6f1c2a7e-8d1b-4c3a-9e2f-0a1b2c3d4e5f", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	id := ts.create(t)
	resp, _ = ts.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPresetEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	base := "/api/sessions/" + id
	bg := catalog.Default().Options(catalog.Background, "")[0].Label

	resp, _ := ts.do(t, http.MethodPost, base+"/styles", styleRequest{Category: string(catalog.Background), Value: bg})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, base+"/presets", presetRequest{Name: "ทางการ"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, _ = ts.do(t, http.MethodPost, base+"/presets", presetRequest{Name: " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/api/presets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []presets.Preset
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, bg, list[0].Styles.Background)

	resp, body = ts.do(t, http.MethodPost, base+"/styles", styleRequest{Clear: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeState(t, body).Selection.Background)

	resp, body = ts.do(t, http.MethodPost, base+"/presets/ทางการ/load", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, bg, decodeState(t, body).Selection.Background)

	resp, _ = ts.do(t, http.MethodDelete, "/api/presets/ทางการ", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodDelete, "/api/presets/ทางการ", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCatalogEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v struct {
		Categories []struct {
			ID     string `json:"id"`
			Male   []any  `json:"male"`
			Female []any  `json:"female"`
		} `json:"categories"`
		Modes []string `json:"modes"`
	}
	require.NoError(t, json.Unmarshal(body, &v))
	require.NotEmpty(t, v.Categories)
	assert.Equal(t, "clothes", v.Categories[0].ID)
	assert.NotEmpty(t, v.Categories[0].Male)
	assert.Equal(t, []string{"studio", "headshot", "repair", "editor"}, v.Modes)
}

func TestWebsocketStreamsSnapshots(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	wsURL := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() stateJSON {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var env struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&env))
		assert.Equal(t, "state", env.Type)
		return decodeState(t, env.Data)
	}

	assert.Equal(t, "studio", read().Mode)

	require.Eventually(t, func() bool { return ts.hub.Count(SessionKey(id)) == 1 }, time.Second, 10*time.Millisecond)
	resp, _ := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/mode", modeRequest{Mode: "headshot"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "headshot", read().Mode)
}
