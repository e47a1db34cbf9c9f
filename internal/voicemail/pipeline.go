package voicemail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxRecordingBytes bounds a single media download. Twilio recordings top
// out well below this at the configured max lengths.
const maxRecordingBytes = 32 << 20

// Notifier posts a message to the team chat.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// RecordingEvent carries the fields of a recording-ready callback the
// pipeline consumes.
type RecordingEvent struct {
	CallSID      string
	From         string
	RecordingSID string
	RecordingURL string
	DurationSecs int
	// Transcript is set when the provider delivered transcription text
	// alongside or after the recording.
	Transcript string
}

// Pipeline fetches recorded audio from the provider, persists it, and posts
// a chat notification with a shareable link. All failures are logged and
// swallowed: the provider callback contract wants a timely acknowledgment,
// and a retry storm helps nobody.
type Pipeline struct {
	store      *Store
	notifier   Notifier
	client     *http.Client
	accountSID string
	authToken  string
	logger     *slog.Logger

	// stored and notifyFailed observe pipeline outcomes for metrics;
	// either may be nil.
	stored       func()
	notifyFailed func()
}

// NewPipeline creates a Pipeline. The account SID and auth token
// authenticate the media download against the provider.
func NewPipeline(store *Store, notifier Notifier, accountSID, authToken string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:      store,
		notifier:   notifier,
		client:     &http.Client{Timeout: 30 * time.Second},
		accountSID: accountSID,
		authToken:  authToken,
		logger:     logger.With("subsystem", "voicemail-pipeline"),
	}
}

// Observe installs outcome hooks for metrics.
func (p *Pipeline) Observe(stored, notifyFailed func()) {
	p.stored = stored
	p.notifyFailed = notifyFailed
}

// Process handles one recording-ready notification: download, persist,
// notify. It never returns an error; the caller acknowledges the provider
// regardless of what happens here.
func (p *Pipeline) Process(ctx context.Context, ev RecordingEvent) {
	if ev.RecordingURL == "" {
		p.logger.Warn("recording callback without audio url, skipping",
			"call_sid", ev.CallSID,
			"recording_sid", ev.RecordingSID,
		)
		return
	}

	name := Filename(ev.RecordingSID)

	body, err := p.fetch(ctx, ev.RecordingURL)
	if err != nil {
		p.logger.Error("fetching recording audio",
			"error", err,
			"call_sid", ev.CallSID,
			"recording_sid", ev.RecordingSID,
		)
		return
	}
	defer body.Close()

	path, err := p.store.Save(name, io.LimitReader(body, maxRecordingBytes))
	if err != nil {
		p.logger.Error("storing recording audio",
			"error", err,
			"call_sid", ev.CallSID,
			"recording_sid", ev.RecordingSID,
		)
		return
	}
	if p.stored != nil {
		p.stored()
	}

	publicURL := p.store.PublicURL(name)
	p.logger.Info("voicemail stored",
		"call_sid", ev.CallSID,
		"recording_sid", ev.RecordingSID,
		"path", path,
		"duration_secs", ev.DurationSecs,
		"url", publicURL,
	)

	p.notify(ctx, voicemailMessage(ev, publicURL))
}

// ProcessTranscript handles the provider's transcription callback, which
// arrives after the audio. It posts a follow-up chat message with the text.
func (p *Pipeline) ProcessTranscript(ctx context.Context, ev RecordingEvent) {
	if strings.TrimSpace(ev.Transcript) == "" {
		p.logger.Debug("transcription callback without text, skipping",
			"call_sid", ev.CallSID,
			"recording_sid", ev.RecordingSID,
		)
		return
	}
	p.notify(ctx, fmt.Sprintf("Transcript of voicemail from %s:\n%s", ev.From, ev.Transcript))
}

func (p *Pipeline) notify(ctx context.Context, text string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Send(ctx, text); err != nil {
		p.logger.Error("posting chat notification", "error", err)
		if p.notifyFailed != nil {
			p.notifyFailed()
		}
	}
}

// fetch downloads the audio resource with the provider's basic-auth scheme.
// Twilio serves the MP3 rendition when the resource URL ends in .mp3.
func (p *Pipeline) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	url := rawURL
	if !strings.HasSuffix(url, ".mp3") && !strings.HasSuffix(url, ".wav") {
		url += ".mp3"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating media request: %w", err)
	}
	req.SetBasicAuth(p.accountSID, p.authToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading media: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("media endpoint returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// voicemailMessage builds the chat notification text for a stored voicemail.
func voicemailMessage(ev RecordingEvent, publicURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New voicemail from %s", ev.From)
	if ev.DurationSecs > 0 {
		fmt.Fprintf(&b, " (%ds)", ev.DurationSecs)
	}
	fmt.Fprintf(&b, "\nListen: %s", publicURL)
	if strings.TrimSpace(ev.Transcript) != "" {
		fmt.Fprintf(&b, "\nTranscript: %s", ev.Transcript)
	}
	return b.String()
}
