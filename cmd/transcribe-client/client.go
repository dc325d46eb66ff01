package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/JaymarM28/kari-transcriptor/domain"
	"github.com/JaymarM28/kari-transcriptor/internal/stream"
)

type uploadResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

func newClient(serverURL string) (*client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return &client{baseURL: u, httpClient: http.DefaultClient}, nil
}

func (c *client) endpoint(scheme string, elem ...string) string {
	u := *c.baseURL
	u.Scheme = scheme
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.Join(elem, "/")
	return u.String()
}

// upload streams the file as multipart form data and returns the job filename
func (c *client) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	body, w := io.Pipe()
	form := multipart.NewWriter(w)
	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = form.Close()
		}
		w.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.baseURL.Scheme, "upload"), body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload: %w", err)
	}
	defer resp.Body.Close()

	var payload uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode upload response (status %d): %w", resp.StatusCode, err)
	}
	if !payload.Success {
		return "", fmt.Errorf("upload rejected: %s", payload.Error)
	}
	return payload.Filename, nil
}

// followSSE reads the event stream of a job until it closes
func (c *client) followSSE(ctx context.Context, filename string, fn func(domain.ProgressEvent)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint(c.baseURL.Scheme, "transcribe", url.PathEscape(filename)), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	r := stream.NewReader(resp.Body)
	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(event)
	}
}

// followWebSocket reads the events of a job from the websocket endpoint
func (c *client) followWebSocket(ctx context.Context, filename string, fn func(domain.ProgressEvent)) error {
	scheme := "ws"
	if c.baseURL.Scheme == "https" {
		scheme = "wss"
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx,
		c.endpoint(scheme, "ws", "transcribe", url.PathEscape(filename)), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket connection failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket connection failed: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var event domain.ProgressEvent
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		fn(event)
	}
}

func statusError(resp *http.Response) error {
	var payload uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
