package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/JaymarM28/kari-transcriptor/adapters/storage"
	"github.com/JaymarM28/kari-transcriptor/domain"
	"github.com/JaymarM28/kari-transcriptor/domain/entities"
	"github.com/JaymarM28/kari-transcriptor/internal/stream"
)

type fakeTranscriber struct {
	calls  atomic.Int32
	events []domain.ProgressEvent
}

func (f *fakeTranscriber) Stream(ctx context.Context, job *entities.Job) <-chan domain.ProgressEvent {
	f.calls.Add(1)
	ch := make(chan domain.ProgressEvent, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch
}

type testServer struct {
	echo        *echo.Echo
	storage     *storage.LocalStorage
	hub         *stream.Hub
	transcriber *fakeTranscriber
}

func setupTestServer(t *testing.T, maxBytes int64) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	store, err := storage.NewLocalStorage(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}

	transcriber := &fakeTranscriber{events: []domain.ProgressEvent{
		{Status: domain.StatusProcessing, Message: "Processing 1 segments", Progress: 30, TotalChunks: 1},
		{Status: domain.StatusCompleted, Message: "Transcription completed", Progress: 100, FullText: "hola mundo"},
	}}
	hub := stream.NewHub(zap.NewNop())

	e := echo.New()
	h := NewHandler(store, transcriber, hub, maxBytes, []string{"wav", "mp3", "ogg", "flac", "m4a"}, logger)
	InitRoutes(e, h, "")

	return &testServer{echo: e, storage: store, hub: hub, transcriber: transcriber}
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		part.Write(content)
	} else {
		w.WriteField("note", "no file here")
	}
	w.Close()
	return body, w.FormDataContentType()
}

func (s *testServer) upload(t *testing.T, field, filename string, content []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var payload map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return rec, payload
}

func uploadedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t, 1024)

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Status != "ok" || got.Service != "kari-transcriptor" {
		t.Errorf("health = %+v", got)
	}
}

func TestUpload_Success(t *testing.T) {
	s := setupTestServer(t, 1024)

	rec, payload := s.upload(t, "file", "voice note.WAV", []byte("RIFF fake audio"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if payload["success"] != true {
		t.Fatalf("success = %v", payload["success"])
	}
	filename, _ := payload["filename"].(string)
	if !strings.HasSuffix(filename, "_voice_note.WAV") {
		t.Errorf("filename = %q", filename)
	}

	files := uploadedFiles(t, s.storage.Dir())
	if len(files) != 1 || files[0] != filename {
		t.Errorf("stored files = %v, want [%s]", files, filename)
	}
	if s.transcriber.calls.Load() != 0 {
		t.Error("upload must not start a transcription")
	}
}

func TestUpload_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		filename  string
		content   []byte
		wantError string
	}{
		{name: "missing file part", field: "", wantError: "No file was sent"},
		{name: "disallowed extension", field: "file", filename: "notes.txt", content: []byte("hello"), wantError: "File type not allowed"},
		{name: "no extension", field: "file", filename: "recording", content: []byte("hello"), wantError: "File type not allowed"},
		{name: "too large", field: "file", filename: "big.mp3", content: bytes.Repeat([]byte{1}, 4096), wantError: "File too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t, 1024)

			rec, payload := s.upload(t, tt.field, tt.filename, tt.content)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if payload["success"] != false {
				t.Errorf("success = %v", payload["success"])
			}
			if payload["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", payload["error"], tt.wantError)
			}
			if files := uploadedFiles(t, s.storage.Dir()); len(files) != 0 {
				t.Errorf("rejected upload was stored: %v", files)
			}
			if s.transcriber.calls.Load() != 0 {
				t.Error("rejected upload reached the pipeline")
			}
		})
	}
}

func storeUpload(t *testing.T, s *testServer, name string) string {
	t.Helper()
	job, err := s.storage.Save(context.Background(), name, strings.NewReader("audio"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return job.ID
}

func TestTranscribeSSE_NotFound(t *testing.T) {
	s := setupTestServer(t, 1024)

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transcribe/missing.wav", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestTranscribeSSE_Conflict(t *testing.T) {
	s := setupTestServer(t, 1024)
	id := storeUpload(t, s, "a.wav")
	if err := s.hub.Acquire(id); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transcribe/"+id, nil))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if s.transcriber.calls.Load() != 0 {
		t.Error("second consumer must not start a job")
	}
}

func TestTranscribeSSE_Streams(t *testing.T) {
	s := setupTestServer(t, 1024)
	id := storeUpload(t, s, "a.wav")

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transcribe/"+id, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	r := stream.NewReader(rec.Body)
	var last domain.ProgressEvent
	count := 0
	for {
		event, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		last = event
		count++
	}
	if count != 2 || !last.IsTerminal() || last.FullText != "hola mundo" {
		t.Errorf("read %d events, last = %+v", count, last)
	}
	if s.hub.IsActive(id) {
		t.Error("stream slot should be released")
	}
}

func TestTranscribeWebSocket_Streams(t *testing.T) {
	s := setupTestServer(t, 1024)
	id := storeUpload(t, s, "a.ogg")

	server := httptest.NewServer(s.echo)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/transcribe/" + id

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var events []domain.ProgressEvent
	for {
		var event domain.ProgressEvent
		if err := conn.ReadJSON(&event); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("unexpected read error: %v", err)
			}
			break
		}
		events = append(events, event)
	}

	if len(events) != 2 || !events[1].IsTerminal() {
		t.Errorf("events = %+v", events)
	}
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/index.html", []byte("<h1>upload</h1>"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	e := echo.New()
	InitRoutes(e, NewHandler(nil, nil, stream.NewHub(zap.NewNop()), 1024, []string{"wav"}, zap.NewNop()), dir)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "upload") {
		t.Errorf("GET / = %d %q", rec.Code, rec.Body.String())
	}
}
