package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sole-vault/shoe-studio/internal/imagegen"
	"github.com/sole-vault/shoe-studio/internal/models"
	"github.com/sole-vault/shoe-studio/internal/services"
	"github.com/sole-vault/shoe-studio/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSessionID = "6f1c1f0e-3d2a-4a43-9a54-0d1f3a9c2b10"

// fakeBackend is the provider boundary; calls counts outbound requests.
type fakeBackend struct {
	calls   atomic.Int32
	images  []imagegen.Image
	err     error
	release chan struct{}
}

func (f *fakeBackend) GenerateImages(ctx context.Context, model, prompt string) ([]imagegen.Image, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.images, f.err
}

func fixedSession(id string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(session.WithID(r.Context(), id)))
		})
	}
}

func newTestRouter(fb *fakeBackend) (*mux.Router, *services.Studio) {
	gen := imagegen.NewWithBackend(fb, imagegen.DefaultImagenModel)
	studio := services.NewStudio(gen)
	h := NewHandler(studio, gen)
	return NewRouter(h, fixedSession(testSessionID)), studio
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func postForm(prompt, style string) *http.Request {
	form := url.Values{"prompt": {prompt}, "style": {style}}
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func waitSettled(t *testing.T, studio *services.Studio) {
	t.Helper()
	select {
	case <-studio.Done(testSessionID):
	case <-time.After(2 * time.Second):
		t.Fatal("generation did not settle")
	}
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(&fakeBackend{})
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIndex_Idle(t *testing.T) {
	r, _ := newTestRouter(&fakeBackend{})
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Your generated shoe will appear here.")
	assert.Contains(t, body, defaultPrompt)
	assert.Contains(t, body, `value="photorealistic" checked`)
	assert.NotContains(t, body, "/download")
}

func TestGenerate_BlankPromptDoesNotCallProvider(t *testing.T) {
	fb := &fakeBackend{images: []imagegen.Image{{Data: []byte("shoe")}}}
	r, _ := newTestRouter(fb)

	rec := serve(r, postForm("   ", "line-art"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.EqualValues(t, 0, fb.calls.Load())

	page := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, page.Body.String(), models.PromptRequiredMessage)
}

func TestGenerate_SuccessThenDownload(t *testing.T) {
	fb := &fakeBackend{images: []imagegen.Image{{Data: []byte("shoe"), MimeType: "image/png"}}}
	r, studio := newTestRouter(fb)

	rec := serve(r, postForm("White sneakers", "3d-render"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	waitSettled(t, studio)

	page := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	body := page.Body.String()
	assert.Contains(t, body, `src="data:image/png;base64,c2hvZQ=="`)
	assert.Contains(t, body, `href="/download"`)
	assert.Contains(t, body, `value="3d-render" checked`)

	dl := serve(r, httptest.NewRequest(http.MethodGet, "/download", nil))
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, "image/png", dl.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="generated-shoe-image.png"`, dl.Header().Get("Content-Disposition"))
	assert.Equal(t, []byte("shoe"), dl.Body.Bytes())
	assert.EqualValues(t, 1, fb.calls.Load())
}

func TestGenerate_FailureShowsError(t *testing.T) {
	fb := &fakeBackend{err: errors.New("quota exceeded")}
	r, studio := newTestRouter(fb)

	serve(r, postForm("Boots", "illustration"))
	waitSettled(t, studio)

	page := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, page.Body.String(), "Failed to generate image: quota exceeded")

	dl := serve(r, httptest.NewRequest(http.MethodGet, "/download", nil))
	assert.Equal(t, http.StatusNotFound, dl.Code)
}

func TestGenerate_SecondSubmitWhileLoading(t *testing.T) {
	fb := &fakeBackend{images: []imagegen.Image{{Data: []byte("shoe")}}, release: make(chan struct{})}
	r, studio := newTestRouter(fb)

	serve(r, postForm("Boots", ""))
	serve(r, postForm("Boots", ""))

	page := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, page.Body.String(), "Generating...")
	assert.Contains(t, page.Body.String(), `http-equiv="refresh"`)

	close(fb.release)
	waitSettled(t, studio)
	assert.EqualValues(t, 1, fb.calls.Load())
}

func TestState_JSON(t *testing.T) {
	r, _ := newTestRouter(&fakeBackend{})
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/state", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var st models.State
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, models.PhaseIdle, st.Phase)
}

func TestDownload_NoResult(t *testing.T) {
	r, _ := newTestRouter(&fakeBackend{})
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/download", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateImage(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		backend    *fakeBackend
		wantStatus int
		wantCalls  int32
		wantBody   string
	}{
		{
			name:       "success",
			body:       `{"prompt":"White sneakers","style":"line-art"}`,
			backend:    &fakeBackend{images: []imagegen.Image{{Data: []byte("shoe")}}},
			wantStatus: http.StatusOK,
			wantCalls:  1,
			wantBody:   `"image":"data:image/png;base64,c2hvZQ=="`,
		},
		{
			name:       "invalid json",
			body:       `{invalid`,
			backend:    &fakeBackend{},
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid request body",
		},
		{
			name:       "blank prompt",
			body:       `{"prompt":"  "}`,
			backend:    &fakeBackend{},
			wantStatus: http.StatusBadRequest,
			wantBody:   models.PromptRequiredMessage,
		},
		{
			name:       "no images",
			body:       `{"prompt":"Boots"}`,
			backend:    &fakeBackend{},
			wantStatus: http.StatusBadGateway,
			wantCalls:  1,
			wantBody:   "No images were generated.",
		},
		{
			name:       "provider error",
			body:       `{"prompt":"Boots"}`,
			backend:    &fakeBackend{err: errors.New("quota exceeded")},
			wantStatus: http.StatusBadGateway,
			wantCalls:  1,
			wantBody:   "Failed to generate image: quota exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(tt.backend)
			req := httptest.NewRequest(http.MethodPost, "/v1/images", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := serve(r, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.Equal(t, tt.wantCalls, tt.backend.calls.Load())
		})
	}
}

func TestWS_GenerateStreamsUntilSettled(t *testing.T) {
	fb := &fakeBackend{images: []imagegen.Image{{Data: []byte("shoe")}}, release: make(chan struct{})}
	r, _ := newTestRouter(fb)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsInMessage{Type: "generate", Prompt: "Boots", Style: models.StyleLineArt}))

	var first wsOutMessage
	require.NoError(t, conn.ReadJSON(&first))
	require.NotNil(t, first.State)
	assert.Equal(t, models.PhaseLoading, first.State.Phase)

	close(fb.release)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var last wsOutMessage
	require.NoError(t, conn.ReadJSON(&last))
	require.NotNil(t, last.State)
	assert.Equal(t, models.PhaseSuccess, last.State.Phase)
	require.NotNil(t, last.State.Result)
	assert.Equal(t, "data:image/png;base64,c2hvZQ==", last.State.Result.DataURI)
	assert.EqualValues(t, 1, fb.calls.Load())
}

func TestWS_BlankPrompt(t *testing.T) {
	fb := &fakeBackend{}
	r, _ := newTestRouter(fb)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsInMessage{Type: "generate", Prompt: " "}))

	var out wsOutMessage
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "error", out.Type)
	assert.Equal(t, models.PromptRequiredMessage, out.Error)
	assert.EqualValues(t, 0, fb.calls.Load())
}
