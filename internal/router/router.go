// Package router implements the call-flow state machine for the office
// answering service. Next maps a (state, callback event) pair to the
// directive the provider should execute, independent of any transport.
package router

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/phone"
)

// Hours reports whether the office is open at a given instant.
type Hours interface {
	Open(t time.Time) bool
}

// Config is the immutable routing configuration, constructed once at startup
// and passed explicitly. Handlers never read ambient process state.
type Config struct {
	// OfficeName is spoken in greetings.
	OfficeName string
	// ServiceNumber is the service's own number, used as outbound caller ID.
	ServiceNumber string
	// TeamNumbers ring in parallel for existing patients.
	TeamNumbers []string
	// StaffPIN is the shared staff menu secret.
	StaffPIN string
	// DialTimeoutSecs is the ring timeout for outbound connections.
	DialTimeoutSecs int
	// VoicemailMaxSecs bounds voicemail recordings.
	VoicemailMaxSecs int
	// Transcribe requests provider transcription of voicemails.
	Transcribe bool
	// StaffMenuAfterHours keeps the staff PIN option reachable while the
	// office is closed. When false, closed-hours calls go straight to
	// voicemail without a menu.
	StaffMenuAfterHours bool
}

// Router makes routing decisions. It holds no per-call state; every decision
// is a function of the event, the clock, and the immutable config.
type Router struct {
	cfg    Config
	hours  Hours
	sink   CallSink
	logger *slog.Logger

	// nowFunc allows overriding the current time for testing.
	nowFunc func() time.Time
}

// New creates a Router.
func New(cfg Config, hours Hours, sink CallSink, logger *slog.Logger) *Router {
	return &Router{
		cfg:     cfg,
		hours:   hours,
		sink:    sink,
		logger:  logger.With("subsystem", "router"),
		nowFunc: time.Now,
	}
}

// dial outcomes the provider reports for a Dial that did not connect. An
// empty status is treated as a failure, matching provider behavior when the
// dial is abandoned before any outcome is assigned.
func dialFailed(status string) bool {
	switch status {
	case "no-answer", "busy", "failed", "canceled", "":
		return true
	}
	return false
}

// Next returns the directive for one callback. It never returns an error:
// invalid user input re-prompts, dial failures route to voicemail or an
// apology, and unknown states terminate the call politely. The provider
// expects a timely document on every callback regardless of our faults.
func (r *Router) Next(ctx context.Context, state State, ev Event) Directive {
	open := r.hours.Open(r.nowFunc())

	r.logger.Debug("routing callback",
		"state", state.String(),
		"call_sid", ev.CallSID,
		"from", ev.From,
		"digits", ev.Digits,
		"dial_status", ev.DialStatus,
		"open", open,
	)

	switch state {
	case StateEntry:
		return r.entry()
	case StateMenu:
		return r.menu(open)
	case StateMenuSelect:
		return r.menuSelect(ev, open)
	case StateDialComplete:
		return r.dialComplete(ev)
	case StatePINVerify:
		return r.pinVerify(ev)
	case StateAgentMenu:
		return r.agentMenu()
	case StateConfirmNumber:
		return r.confirmNumber(ev)
	case StateDialPatient:
		return r.dialPatient(ctx, ev)
	case StateVoicemail:
		return r.voicemail()
	case StateGoodbye:
		return sayHangup("Thank you. Goodbye.")
	case StateRecordingReady:
		return Directive{Kind: KindAck}
	}

	r.logger.Warn("unknown routing state", "state", int(state), "call_sid", ev.CallSID)
	return sayHangup("We are sorry, an application error has occurred. Goodbye.")
}

func (r *Router) entry() Directive {
	return redirect(StateMenu,
		"If this is a medical emergency, please hang up and dial 9 1 1.",
		fmt.Sprintf("You have reached %s.", r.cfg.OfficeName),
	)
}

func (r *Router) menu(open bool) Directive {
	if !open && !r.cfg.StaffMenuAfterHours {
		return redirect(StateVoicemail)
	}

	prompts := []string{
		"Press 1 if you are an existing patient or a provider.",
		"Press 2 if you are a prospective patient.",
		"Press 3 if you are a staff member.",
	}
	if !open {
		prompts = append([]string{"Our office is currently closed. Office hours are Monday through Friday, 8 AM to 5 PM."}, prompts...)
	}

	return Directive{
		Kind: KindGather,
		Gather: &GatherSpec{
			Prompts:     prompts,
			NumDigits:   1,
			TimeoutSecs: 8,
			Action:      StateMenuSelect,
			OnTimeout:   StateVoicemail,
		},
	}
}

func (r *Router) menuSelect(ev Event, open bool) Directive {
	switch ev.Digits {
	case "1":
		if !open {
			return redirect(StateVoicemail)
		}
		return Directive{
			Kind: KindDial,
			Say:  []string{"Please hold while we connect you."},
			Dial: &DialSpec{
				Numbers:     r.cfg.TeamNumbers,
				CallerID:    r.cfg.ServiceNumber,
				TimeoutSecs: r.cfg.DialTimeoutSecs,
				Recorded:    true,
				Action:      StateDialComplete,
			},
		}
	case "2":
		// Prospective patients leave a message; there is no live agent path.
		return redirect(StateVoicemail)
	case "3":
		return Directive{
			Kind: KindGather,
			Gather: &GatherSpec{
				Prompts:     []string{"Please enter your 4 digit staff PIN."},
				NumDigits:   4,
				TimeoutSecs: 10,
				Action:      StatePINVerify,
				OnTimeout:   StateGoodbye,
			},
		}
	default:
		// Unrecognized digit replays the menu.
		return redirect(StateMenu, "Sorry, I did not understand that choice.")
	}
}

func (r *Router) dialComplete(ev Event) Directive {
	if !dialFailed(ev.DialStatus) {
		// Someone answered and the call has ended; nothing left to do.
		return Directive{Kind: KindHangup}
	}

	if ev.AgentLeg {
		// Do not route staff into their own voicemail inbox when the
		// patient does not pick up.
		return sayHangup("The patient could not be reached. Please try again later. Goodbye.")
	}

	return redirect(StateVoicemail)
}

func (r *Router) pinVerify(ev Event) Directive {
	pin := []byte(ev.Digits)
	want := []byte(r.cfg.StaffPIN)
	if len(pin) != len(want) || subtle.ConstantTimeCompare(pin, want) != 1 {
		r.logger.Warn("staff pin rejected", "call_sid", ev.CallSID, "from", ev.From)
		return sayHangup("That PIN is not recognized. Goodbye.")
	}
	return redirect(StateAgentMenu)
}

func (r *Router) agentMenu() Directive {
	return Directive{
		Kind: KindGather,
		Gather: &GatherSpec{
			Prompts: []string{
				"Enter the patient's phone number, then press pound.",
			},
			FinishOnKey: "#",
			TimeoutSecs: 15,
			Action:      StateConfirmNumber,
			OnTimeout:   StateGoodbye,
			TimeoutSay:  []string{"No number entered."},
		},
	}
}

func (r *Router) confirmNumber(ev Event) Directive {
	if !phone.Valid(ev.Digits) {
		return redirect(StateAgentMenu, "That does not look like a valid phone number.")
	}

	number := phone.Normalize(ev.Digits)
	return Directive{
		Kind: KindGather,
		Gather: &GatherSpec{
			Prompts: []string{
				fmt.Sprintf("You entered %s.", phone.Verbalize(phone.Digits(ev.Digits))),
				"Press 1 to call this number, or any other key to re-enter.",
			},
			NumDigits:   1,
			TimeoutSecs: 10,
			Action:      StateDialPatient,
			Params:      map[string]string{"num": number},
			OnTimeout:   StateGoodbye,
		},
	}
}

func (r *Router) dialPatient(ctx context.Context, ev Event) Directive {
	if ev.Digits != "1" {
		return redirect(StateAgentMenu, "Okay, let's try again.")
	}
	if ev.Number == "" {
		return redirect(StateAgentMenu, "That number was lost. Please re-enter it.")
	}

	if err := r.sink.Record(ctx, LogEntry{
		AgentNumber:   ev.From,
		PatientNumber: ev.Number,
		CallSID:       ev.CallSID,
		CreatedAt:     r.nowFunc(),
	}); err != nil {
		// A failed log write never blocks the call.
		r.logger.Error("recording call log entry", "error", err, "call_sid", ev.CallSID)
	}

	return Directive{
		Kind: KindDial,
		Say:  []string{"Connecting you now."},
		Dial: &DialSpec{
			Numbers:     []string{ev.Number},
			CallerID:    r.cfg.ServiceNumber,
			TimeoutSecs: r.cfg.DialTimeoutSecs,
			Recorded:    true,
			Action:      StateDialComplete,
			AgentLeg:    true,
		},
	}
}

func (r *Router) voicemail() Directive {
	return Directive{
		Kind: KindRecord,
		Say: []string{
			fmt.Sprintf("You have reached the voicemail of %s.", r.cfg.OfficeName),
			"Please leave a detailed message with your name and callback number after the beep.",
		},
		Record: &RecordSpec{
			MaxSeconds: r.cfg.VoicemailMaxSecs,
			Transcribe: r.cfg.Transcribe,
			Action:     StateGoodbye,
		},
	}
}
