package api

import (
	"net/http"
	"strconv"

	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/router"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/twiml"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/voicemail"
)

// voice returns the webhook handler for one routing state. The handler is a
// thin shim: parse the callback into an event, ask the router for the next
// directive, render it as voice markup.
func (s *Server) voice(state router.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ev := eventFromRequest(r)
		s.deps.Counters.CallbacksTotal.WithLabelValues(state.String()).Inc()

		d := s.deps.Calls.Next(r.Context(), state, ev)
		s.writeTwiML(w, d)
	}
}

// eventFromRequest extracts the provider callback parameters the router
// consumes. Values the service itself planted on the action URL (the
// confirmed number, the agent-leg tag) come from the query string; everything
// else arrives in the POSTed form.
func eventFromRequest(r *http.Request) router.Event {
	duration, _ := strconv.Atoi(r.PostFormValue("DialCallDuration"))

	return router.Event{
		From:         r.PostFormValue("From"),
		CallSID:      r.PostFormValue("CallSid"),
		Digits:       r.PostFormValue("Digits"),
		DialStatus:   r.PostFormValue("DialCallStatus"),
		DialDuration: duration,
		AgentLeg:     r.URL.Query().Get("leg") == "agent",
		Number:       r.URL.Query().Get("num"),
	}
}

// writeTwiML renders a directive and writes it as the callback response.
// A render failure falls back to a bare hangup document so the provider
// always receives well-formed markup.
func (s *Server) writeTwiML(w http.ResponseWriter, d router.Directive) {
	doc, err := renderDirective(d)
	if err != nil {
		s.logger.Error("rendering voice response", "error", err)
		doc = twiml.Header + "<Response><Hangup/></Response>"
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc)) //nolint:errcheck
}

// handleRecordingReady receives the recording-status callback after a
// voicemail finishes. The download-and-notify pipeline swallows its own
// failures, so the provider is always acknowledged.
func (s *Server) handleRecordingReady(w http.ResponseWriter, r *http.Request) {
	s.deps.Counters.CallbacksTotal.WithLabelValues(router.StateRecordingReady.String()).Inc()

	s.deps.Pipeline.Process(r.Context(), recordingEventFromRequest(r))
	w.WriteHeader(http.StatusNoContent)
}

// handleTranscription receives the transcription callback, which the
// provider delivers separately once speech-to-text completes.
func (s *Server) handleTranscription(w http.ResponseWriter, r *http.Request) {
	s.deps.Counters.CallbacksTotal.WithLabelValues("transcription").Inc()

	s.deps.Pipeline.ProcessTranscript(r.Context(), recordingEventFromRequest(r))
	w.WriteHeader(http.StatusNoContent)
}

func recordingEventFromRequest(r *http.Request) voicemail.RecordingEvent {
	duration, _ := strconv.Atoi(r.PostFormValue("RecordingDuration"))

	return voicemail.RecordingEvent{
		CallSID:      r.PostFormValue("CallSid"),
		From:         r.PostFormValue("From"),
		RecordingSID: r.PostFormValue("RecordingSid"),
		RecordingURL: r.PostFormValue("RecordingUrl"),
		DurationSecs: duration,
		Transcript:   r.PostFormValue("TranscriptionText"),
	}
}

// handleSMS replies to every inbound text with the configured auto-response.
func (s *Server) handleSMS(w http.ResponseWriter, r *http.Request) {
	s.deps.Counters.CallbacksTotal.WithLabelValues("sms").Inc()

	doc, err := twiml.Render(&twiml.MessagingResponse{Message: s.deps.Config.SMSReply})
	if err != nil {
		s.logger.Error("rendering sms response", "error", err)
		doc = twiml.Header + "<Response></Response>"
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc)) //nolint:errcheck
}
