package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/api/middleware"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/config"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/metrics"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/router"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/voicemail"
)

// fixedHours is an Hours implementation pinned open or closed.
type fixedHours bool

func (f fixedHours) Open(time.Time) bool { return bool(f) }

// rejectVerifier fails every signature check.
type rejectVerifier struct{}

func (rejectVerifier) Verify(string, map[string]string, string) bool { return false }

type testServer struct {
	srv   *Server
	sink  *router.MemorySink
	store *voicemail.Store
}

func newTestServer(t *testing.T, open bool, verifier middleware.Verifier) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		PublicBaseURL: "https://calls.example.com",
		ServiceNumber: "+19099705700",
		SMSReply:      "Thanks for texting Align Medicine! We received your message and will respond shortly.",
	}

	sink := router.NewMemorySink()
	calls := router.New(router.Config{
		OfficeName:          "Align Medicine",
		ServiceNumber:       cfg.ServiceNumber,
		TeamNumbers:         []string{"+19097810829", "+19094377512"},
		StaffPIN:            "4321",
		DialTimeoutSecs:     20,
		VoicemailMaxSecs:    120,
		Transcribe:          true,
		StaffMenuAfterHours: true,
	}, fixedHours(open), sink, logger)

	store, err := voicemail.NewStore(t.TempDir(), cfg.PublicBaseURL)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	pipeline := voicemail.NewPipeline(store, nil, "AC0123", "token", logger)

	srv := NewServer(Deps{
		Config:   cfg,
		Calls:    calls,
		Pipeline: pipeline,
		Store:    store,
		Counters: metrics.NewCounters(prometheus.NewRegistry()),
		Verifier: verifier,
		Logger:   logger,
	})
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, sink: sink, store: store}
}

func (ts *testServer) post(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func entryForm() url.Values {
	return url.Values{
		"From":    {"+15551234567"},
		"CallSid": {"CA0011"},
	}
}

func TestEntryRedirectsToMenu(t *testing.T) {
	ts := newTestServer(t, true, middleware.NoopVerifier{})

	rec := ts.post(t, "/twilio/voice", entryForm())

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Errorf("Content-Type = %q, want text/xml", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "9 1 1") {
		t.Errorf("entry response missing emergency disclosure:\n%s", body)
	}
	if !strings.Contains(body, "<Redirect method=\"POST\">/twilio/voice/menu</Redirect>") {
		t.Errorf("entry response missing redirect to menu:\n%s", body)
	}
}

func TestMenuGathersOneDigit(t *testing.T) {
	ts := newTestServer(t, true, middleware.NoopVerifier{})

	body := ts.post(t, "/twilio/voice/menu", entryForm()).Body.String()

	if !strings.Contains(body, `action="/twilio/voice/menu-select"`) {
		t.Errorf("menu gather action wrong:\n%s", body)
	}
	if !strings.Contains(body, `numDigits="1"`) {
		t.Errorf("menu gather should collect one digit:\n%s", body)
	}
	// No input falls through to voicemail.
	if !strings.Contains(body, "/twilio/voice/voicemail") {
		t.Errorf("menu should fall through to voicemail on timeout:\n%s", body)
	}
}

func TestExistingPatientDialsTeam(t *testing.T) {
	ts := newTestServer(t, true, middleware.NoopVerifier{})

	form := entryForm()
	form.Set("Digits", "1")
	body := ts.post(t, "/twilio/voice/menu-select", form).Body.String()

	for _, number := range []string{"+19097810829", "+19094377512"} {
		if !strings.Contains(body, "<Number>"+number+"</Number>") {
			t.Errorf("dial missing team number %s:\n%s", number, body)
		}
	}
	if !strings.Contains(body, `record="record-from-answer"`) {
		t.Errorf("patient dial should be recorded:\n%s", body)
	}
	if !strings.Contains(body, `callerId="+19099705700"`) {
		t.Errorf("dial should present the service number:\n%s", body)
	}
	if !strings.Contains(body, `action="/twilio/voice/dial-complete"`) {
		t.Errorf("dial must report its outcome:\n%s", body)
	}
}

func TestExistingPatientAfterHoursGoesToVoicemail(t *testing.T) {
	ts := newTestServer(t, false, middleware.NoopVerifier{})

	form := entryForm()
	form.Set("Digits", "1")
	body := ts.post(t, "/twilio/voice/menu-select", form).Body.String()

	if strings.Contains(body, "<Dial") {
		t.Errorf("closed office must not ring the team:\n%s", body)
	}
	if !strings.Contains(body, "/twilio/voice/voicemail") {
		t.Errorf("closed option 1 should go to voicemail:\n%s", body)
	}
}

func TestDialCompleteAgentLegNoAnswer(t *testing.T) {
	ts := newTestServer(t, true, middleware.NoopVerifier{})

	form := entryForm()
	form.Set("DialCallStatus", "no-answer")
	body := ts.post(t, "/twilio/voice/dial-complete?leg=agent", form).Body.String()

	if !strings.Contains(body, "The patient could not be reached") {
		t.Errorf("agent leg no-answer should apologize:\n%s", body)
	}
	if strings.Contains(body, "/twilio/voice/voicemail") {
		t.Errorf("agent leg must never land in voicemail:\n%s", body)
	}
	if !strings.Contains(body, "<Hangup") {
		t.Errorf("agent leg no-answer should hang up:\n%s", body)
	}
}

func TestDialCompleteCallerNoAnswer(t *testing.T) {
	ts := newTestServer(t, true, middleware.NoopVerifier{})

	form := entryForm()
	form.Set("DialCallStatus", "no-answer")
	body := ts.post(t, "/twilio/voice/dial-complete", form).Body.String()

	if !strings.Contains(body, "/twilio/voice/voicemail") {
		t.Errorf("unanswered patient dial should go to voicemail:\n%s", body)
	}
}

func TestStaffPINFlow(t *testing.T) {
	ts := newTestServer(t, true, middleware.NoopVerifier{})

	form := entryForm()
	form.Set("Digits", "4321")
	body := ts.post(t, "/twilio/voice/pin", form).Body.String()
	if !strings.Contains(body, "/twilio/voice/agent") {
		t.Errorf("correct PIN should reach the agent menu:\n%s", body)
	}

	form.Set("Digits", "0000")
	body = ts.post(t, "/twilio/voice/pin", form).Body.String()
	if !strings.Contains(body, "not recognized") || !strings.Contains(body, "<Hangup") {
		t.Errorf("wrong PIN should reject and hang up:\n%s", body)
	}
}

func TestConfirmNumberCarriesNumberOnAction(t *testing.T) {
	ts := newTestServer(t, true, middleware.NoopVerifier{})

	form := entryForm()
	form.Set("Digits", "9095551234")
	body := ts.post(t, "/twilio/voice/confirm", form).Body.String()

	// XML attribute escaping turns the query's &#43; percent-encoding into
	// plain text; the + is percent-encoded by url.Values.
	if !strings.Contains(body, "num=%2B19095551234") {
		t.Errorf("confirm action must carry the normalized number:\n%s", body)
	}
	if !strings.Contains(body, "9,0,9,5,5,5,1,2,3,4") {
		t.Errorf("confirm should read the number back digit by digit:\n%s", body)
	}
}

func TestDialPatientLogsAndDials(t *testing.T) {
	ts := newTestServer(t, true, middleware.NoopVerifier{})

	form := entryForm()
	form.Set("Digits", "1")
	body := ts.post(t, "/twilio/voice/dial-patient?num=%2B19095551234", form).Body.String()

	if !strings.Contains(body, "<Number>+19095551234</Number>") {
		t.Errorf("patient dial missing confirmed number:\n%s", body)
	}
	if !strings.Contains(body, "leg=agent") {
		t.Errorf("patient dial action must be tagged as the agent leg:\n%s", body)
	}

	entries := ts.sink.Entries()
	if len(entries) != 1 {
		t.Fatalf("call log entries = %d, want 1", len(entries))
	}
	if entries[0].PatientNumber != "+19095551234" || entries[0].AgentNumber != "+15551234567" {
		t.Errorf("call log entry = %+v", entries[0])
	}
}

func TestVoicemailRecords(t *testing.T) {
	ts := newTestServer(t, true, middleware.NoopVerifier{})

	body := ts.post(t, "/twilio/voice/voicemail", entryForm()).Body.String()

	if !strings.Contains(body, `maxLength="120"`) {
		t.Errorf("voicemail should cap recording length:\n%s", body)
	}
	if !strings.Contains(body, `recordingStatusCallback="/twilio/voice/recording"`) {
		t.Errorf("voicemail must declare the recording callback:\n%s", body)
	}
	if !strings.Contains(body, `transcribeCallback="/twilio/voice/transcription"`) {
		t.Errorf("voicemail should request transcription:\n%s", body)
	}
	if !strings.Contains(body, `action="/twilio/voice/goodbye"`) {
		t.Errorf("voicemail should continue to the goodbye step:\n%s", body)
	}
}

func TestRecordingReadyAlwaysAcks(t *testing.T) {
	ts := newTestServer(t, true, middleware.NoopVerifier{})

	// No RecordingUrl at all: the pipeline skips, the provider still gets 204.
	rec := ts.post(t, "/twilio/voice/recording", entryForm())
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	count, err := ts.store.Count()
	if err != nil {
		t.Fatalf("counting recordings: %v", err)
	}
	if count != 0 {
		t.Errorf("stored recordings = %d, want 0", count)
	}
}

func TestRecordingDownloadAndServe(t *testing.T) {
	audio := []byte("ID3 fake mp3 payload")
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(audio)
	}))
	defer media.Close()

	ts := newTestServer(t, true, middleware.NoopVerifier{})

	form := entryForm()
	form.Set("RecordingSid", "RE77")
	form.Set("RecordingUrl", media.URL+"/RE77")
	form.Set("RecordingDuration", "12")

	rec := ts.post(t, "/twilio/voice/recording", form)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	// The stored file is now served back under its public path.
	req := httptest.NewRequest(http.MethodGet, "/recordings/RE77.mp3", nil)
	out := httptest.NewRecorder()
	ts.srv.ServeHTTP(out, req)

	if out.Code != http.StatusOK {
		t.Fatalf("serving recording: status = %d, want 200", out.Code)
	}
	if ct := out.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", ct)
	}
	if out.Body.String() != string(audio) {
		t.Errorf("served bytes do not match stored audio")
	}
}

func TestRecordingUnknownFile404(t *testing.T) {
	ts := newTestServer(t, true, middleware.NoopVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/recordings/nope.mp3", nil)
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSMSAutoReply(t *testing.T) {
	ts := newTestServer(t, true, middleware.NoopVerifier{})

	form := url.Values{"From": {"+15551234567"}, "Body": {"hi"}}
	rec := ts.post(t, "/twilio/sms", form)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Message>") || !strings.Contains(body, "Thanks for texting") {
		t.Errorf("sms reply missing message:\n%s", body)
	}
}

func TestWebhooksRejectBadSignature(t *testing.T) {
	ts := newTestServer(t, true, rejectVerifier{})

	rec := ts.post(t, "/twilio/voice", entryForm())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	// Non-webhook routes are not signature guarded.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	out := httptest.NewRecorder()
	ts.srv.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", out.Code)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, true, middleware.NoopVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("health body = %q", rec.Body.String())
	}
}
