package voicemail

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// captureNotifier records every message it is asked to send.
type captureNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *captureNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, text)
	return nil
}

func (n *captureNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	copy(out, n.messages)
	return out
}

func newTestPipeline(t *testing.T) (*Pipeline, *Store, *captureNotifier) {
	t.Helper()
	store, err := NewStore(t.TempDir(), "https://calls.example.com")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	notifier := &captureNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPipeline(store, notifier, "AC123", "token", logger), store, notifier
}

func TestPipelineProcess(t *testing.T) {
	var gotAuth bool
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		gotAuth = ok && user == "AC123" && pass == "token"
		if !strings.HasSuffix(r.URL.Path, ".mp3") {
			t.Errorf("expected .mp3 media request, got %s", r.URL.Path)
		}
		w.Write([]byte("mp3-audio"))
	}))
	defer media.Close()

	p, store, notifier := newTestPipeline(t)

	p.Process(context.Background(), RecordingEvent{
		CallSID:      "CA1",
		From:         "+15551234567",
		RecordingSID: "RE9",
		RecordingURL: media.URL + "/Recordings/RE9",
		DurationSecs: 42,
	})

	if !gotAuth {
		t.Error("media download must use basic auth credentials")
	}

	// Exactly one file with the SID-derived name.
	data, err := os.ReadFile(filepath.Join(store.Dir(), "RE9.mp3"))
	if err != nil {
		t.Fatalf("stored file: %v", err)
	}
	if string(data) != "mp3-audio" {
		t.Errorf("stored content = %q", data)
	}
	if n, _ := store.Count(); n != 1 {
		t.Errorf("stored %d files, want exactly 1", n)
	}

	// Exactly one notification carrying the derived public URL.
	msgs := notifier.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d notifications, want exactly 1", len(msgs))
	}
	if !strings.Contains(msgs[0], "https://calls.example.com/recordings/RE9.mp3") {
		t.Errorf("notification missing public URL: %q", msgs[0])
	}
	if !strings.Contains(msgs[0], "+15551234567") {
		t.Errorf("notification missing caller identity: %q", msgs[0])
	}
	if !strings.Contains(msgs[0], "42s") {
		t.Errorf("notification missing duration: %q", msgs[0])
	}
}

func TestPipelineMissingURLDoesNothing(t *testing.T) {
	p, store, notifier := newTestPipeline(t)

	p.Process(context.Background(), RecordingEvent{
		CallSID:      "CA1",
		RecordingSID: "RE9",
	})

	if n, _ := store.Count(); n != 0 {
		t.Errorf("stored %d files, want 0", n)
	}
	if len(notifier.Messages()) != 0 {
		t.Error("missing audio URL must produce zero downstream calls")
	}
}

func TestPipelineDownloadFailureSwallowed(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer media.Close()

	p, store, notifier := newTestPipeline(t)

	// Must not panic or notify; the callback is acknowledged regardless.
	p.Process(context.Background(), RecordingEvent{
		CallSID:      "CA1",
		RecordingSID: "RE9",
		RecordingURL: media.URL + "/Recordings/RE9",
	})

	if n, _ := store.Count(); n != 0 {
		t.Errorf("stored %d files after failed download, want 0", n)
	}
	if len(notifier.Messages()) != 0 {
		t.Error("failed download must not notify")
	}
}

func TestPipelineNotifyFailureObserved(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio"))
	}))
	defer media.Close()

	store, err := NewStore(t.TempDir(), "https://calls.example.com")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	notifier := &captureNotifier{err: io.ErrUnexpectedEOF}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPipeline(store, notifier, "AC123", "token", logger)

	var failures int
	p.Observe(nil, func() { failures++ })

	p.Process(context.Background(), RecordingEvent{
		RecordingSID: "RE9",
		RecordingURL: media.URL + "/Recordings/RE9",
	})

	if failures != 1 {
		t.Errorf("notify failures = %d, want 1", failures)
	}
	// The audio is still stored despite the notification failure.
	if n, _ := store.Count(); n != 1 {
		t.Errorf("stored %d files, want 1", n)
	}
}

func TestPipelineTranscript(t *testing.T) {
	p, _, notifier := newTestPipeline(t)

	p.ProcessTranscript(context.Background(), RecordingEvent{
		From:       "+15551234567",
		Transcript: "please call me back about my appointment",
	})

	msgs := notifier.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d notifications, want 1", len(msgs))
	}
	if !strings.Contains(msgs[0], "please call me back") {
		t.Errorf("transcript missing from notification: %q", msgs[0])
	}

	// Empty transcripts are dropped silently.
	p.ProcessTranscript(context.Background(), RecordingEvent{Transcript: "   "})
	if len(notifier.Messages()) != 1 {
		t.Error("blank transcript must not notify")
	}
}
