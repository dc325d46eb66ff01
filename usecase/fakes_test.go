package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/JaymarM28/kari-transcriptor/domain"
	"github.com/JaymarM28/kari-transcriptor/domain/entities"
	"github.com/JaymarM28/kari-transcriptor/domain/repositories"
	"github.com/JaymarM28/kari-transcriptor/internal/audio"
)

// test waveforms use one sample per millisecond
const testRate = 1000

func tone(ms int) []int32 {
	samples := make([]int32, ms)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 8000
		} else {
			samples[i] = -8000
		}
	}
	return samples
}

// burstWave returns count 2 s bursts separated by 1 s of digital silence.
func burstWave(count int) *audio.Waveform {
	var samples []int32
	for i := 0; i < count; i++ {
		if i > 0 {
			samples = append(samples, make([]int32, 1000)...)
		}
		samples = append(samples, tone(2000)...)
	}
	return audio.NewWaveform(samples, testRate, 16)
}

func flatWave(ms int) *audio.Waveform {
	return audio.NewWaveform(tone(ms), testRate, 16)
}

type fakeCodec struct {
	wave      *audio.Waveform
	convert   func(ctx context.Context, src, dst string) error
	load      func(path string) (*audio.Waveform, error)
	exportErr error

	mu        sync.Mutex
	converted []string
	exported  []string
}

var _ repositories.AudioCodec = (*fakeCodec)(nil)

func (f *fakeCodec) Convert(ctx context.Context, src, dst string) error {
	f.mu.Lock()
	f.converted = append(f.converted, dst)
	f.mu.Unlock()
	if f.convert != nil {
		return f.convert(ctx, src, dst)
	}
	return os.WriteFile(dst, []byte("RIFF"), 0o644)
}

func (f *fakeCodec) Load(path string) (*audio.Waveform, error) {
	if f.load != nil {
		return f.load(path)
	}
	return f.wave, nil
}

func (f *fakeCodec) Export(w *audio.Waveform, path string) error {
	f.mu.Lock()
	f.exported = append(f.exported, path)
	f.mu.Unlock()
	if f.exportErr != nil {
		return f.exportErr
	}
	return os.WriteFile(path, make([]byte, 44+2*len(w.Samples)), 0o644)
}

type sttResponse struct {
	text string
	err  error
}

// scriptedSTT answers recognition calls in order; calls past the script succeed with "texto".
type scriptedSTT struct {
	mu        sync.Mutex
	script    []sttResponse
	calls     int
	onCall    func(ctx context.Context, call int)
	languages []string
}

func (s *scriptedSTT) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	s.languages = append(s.languages, config.Language)
	s.mu.Unlock()

	if s.onCall != nil {
		s.onCall(ctx, call)
	}
	if call < len(s.script) {
		return s.script[call].text, s.script[call].err
	}
	return "texto", nil
}

func (s *scriptedSTT) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errRemoveFailed = errors.New("remove failed")

type removal struct {
	path string
	// pending is the number of events queued when the removal happened.
	pending int
}

// recordingRemover records every release attempt and the number of events sent so far.
type recordingRemover struct {
	mu       sync.Mutex
	events   chan domain.ProgressEvent
	fail     bool
	removals []removal
}

func (r *recordingRemover) Remove(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := 0
	if r.events != nil {
		pending = len(r.events)
	}
	r.removals = append(r.removals, removal{path: path, pending: pending})
	if r.fail {
		return errRemoveFailed
	}
	return os.Remove(path)
}

func (r *recordingRemover) find(path string) (removal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rm := range r.removals {
		if rm.path == path {
			return rm, true
		}
	}
	return removal{}, false
}

func (r *recordingRemover) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.removals)
}

func testPipelineConfig(t *testing.T) PipelineConfig {
	cfg := DefaultPipelineConfig()
	cfg.SegmentPause = 0
	cfg.RetryBackoff = time.Millisecond
	cfg.TempDir = t.TempDir()
	return cfg
}

func newTestJob(t *testing.T, name string) *entities.Job {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("source"), 0o644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}
	return entities.NewJob(path, time.Now())
}

type harness struct {
	service *TranscriptionService
	codec   *fakeCodec
	stt     *scriptedSTT
	remover *recordingRemover
	events  chan domain.ProgressEvent
	cfg     PipelineConfig
}

func newHarness(t *testing.T, wave *audio.Waveform, script ...sttResponse) *harness {
	events := make(chan domain.ProgressEvent, 256)
	h := &harness{
		codec:   &fakeCodec{wave: wave},
		stt:     &scriptedSTT{script: script},
		remover: &recordingRemover{events: events},
		events:  events,
		cfg:     testPipelineConfig(t),
	}
	h.build(t)
	return h
}

func (h *harness) build(t *testing.T) {
	h.service = NewTranscriptionService(h.codec, h.stt, h.remover, h.cfg, zaptest.NewLogger(t))
}

// run executes the job synchronously and returns every event sent.
func (h *harness) run(ctx context.Context, job *entities.Job) ([]domain.ProgressEvent, error) {
	err := h.service.Run(ctx, job, h.events)
	close(h.events)
	var out []domain.ProgressEvent
	for ev := range h.events {
		out = append(out, ev)
	}
	return out, err
}

func statuses(events []domain.ProgressEvent) []domain.Status {
	out := make([]domain.Status, len(events))
	for i, ev := range events {
		out[i] = ev.Status
	}
	return out
}

func assertStatuses(t *testing.T, events []domain.ProgressEvent, want ...domain.Status) {
	t.Helper()
	got := statuses(events)
	if len(got) != len(want) {
		t.Fatalf("Expected statuses %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected statuses %v, got %v", want, got)
		}
	}
}

// assertStreamInvariants checks ordering rules every finished stream must satisfy.
func assertStreamInvariants(t *testing.T, events []domain.ProgressEvent) {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("Expected events")
	}

	last := 0
	terminals := 0
	for i, ev := range events {
		if ev.Progress < last {
			t.Errorf("Event %d (%s) progress %d decreased from %d", i, ev.Status, ev.Progress, last)
		}
		last = ev.Progress
		if ev.IsTerminal() {
			terminals++
			if i != len(events)-1 {
				t.Errorf("Terminal event %d is not last", i)
			}
		}
	}
	if terminals != 1 {
		t.Errorf("Expected exactly one terminal event, got %d", terminals)
	}
	if final := events[len(events)-1]; final.Progress != 100 {
		t.Errorf("Expected final progress 100, got %d", final.Progress)
	}
}
