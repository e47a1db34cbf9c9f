package api

import (
	"fmt"
	"net/url"

	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/router"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/twiml"
)

// statePaths maps each routing state to its webhook path. Action and
// redirect URLs are emitted relative; the provider resolves them against
// the URL of the callback it is executing.
var statePaths = map[router.State]string{
	router.StateEntry:          "/twilio/voice",
	router.StateMenu:           "/twilio/voice/menu",
	router.StateMenuSelect:     "/twilio/voice/menu-select",
	router.StateDialComplete:   "/twilio/voice/dial-complete",
	router.StatePINVerify:      "/twilio/voice/pin",
	router.StateAgentMenu:      "/twilio/voice/agent",
	router.StateConfirmNumber:  "/twilio/voice/confirm",
	router.StateDialPatient:    "/twilio/voice/dial-patient",
	router.StateVoicemail:      "/twilio/voice/voicemail",
	router.StateGoodbye:        "/twilio/voice/goodbye",
	router.StateRecordingReady: "/twilio/voice/recording",
}

// transcriptionPath is the transcribe callback target. Transcription is a
// notification, not a routing state; it never produces voice markup.
const transcriptionPath = "/twilio/voice/transcription"

// actionPath builds a state's webhook path with any carried parameters
// encoded on the query string.
func actionPath(state router.State, params map[string]string) string {
	p := statePaths[state]
	if len(params) == 0 {
		return p
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return p + "?" + q.Encode()
}

// renderDirective translates a routing directive into the provider's voice
// markup. This is the only place state names become URLs.
func renderDirective(d router.Directive) (string, error) {
	var resp twiml.Response

	for _, line := range d.Say {
		resp.Append(twiml.Say{Text: line})
	}

	switch d.Kind {
	case router.KindHangup:
		resp.Append(twiml.Hangup{})

	case router.KindRedirect:
		resp.Append(twiml.Redirect{Method: "POST", URL: statePaths[d.Redirect]})

	case router.KindGather:
		g := d.Gather
		gather := twiml.Gather{
			Action:      actionPath(g.Action, g.Params),
			Method:      "POST",
			NumDigits:   g.NumDigits,
			Timeout:     g.TimeoutSecs,
			FinishOnKey: g.FinishOnKey,
		}
		for _, line := range g.Prompts {
			gather.Verbs = append(gather.Verbs, twiml.Say{Text: line})
		}
		resp.Append(gather)

		// Verbs after the Gather run only when no digits arrive.
		for _, line := range g.TimeoutSay {
			resp.Append(twiml.Say{Text: line})
		}
		resp.Append(twiml.Redirect{Method: "POST", URL: statePaths[g.OnTimeout]})

	case router.KindDial:
		dl := d.Dial
		var params map[string]string
		if dl.AgentLeg {
			params = map[string]string{"leg": "agent"}
		}
		dial := twiml.Dial{
			Action:   actionPath(dl.Action, params),
			Method:   "POST",
			Timeout:  dl.TimeoutSecs,
			CallerID: dl.CallerID,
		}
		if dl.Recorded {
			dial.Record = "record-from-answer"
		}
		for _, n := range dl.Numbers {
			dial.Numbers = append(dial.Numbers, twiml.Number{Value: n})
		}
		resp.Append(dial)

	case router.KindRecord:
		rc := d.Record
		rec := twiml.Record{
			Action:                        statePaths[rc.Action],
			Method:                        "POST",
			MaxLength:                     rc.MaxSeconds,
			PlayBeep:                      true,
			RecordingStatusCallback:       statePaths[router.StateRecordingReady],
			RecordingStatusCallbackMethod: "POST",
		}
		if rc.Transcribe {
			rec.Transcribe = true
			rec.TranscribeCallback = transcriptionPath
		}
		resp.Append(rec)

	case router.KindAck:
		// Empty response acknowledges the callback.

	default:
		return "", fmt.Errorf("unknown directive kind %d", d.Kind)
	}

	return twiml.Render(&resp)
}
