package router

// State identifies a step in the call flow. Each state corresponds to one
// inbound webhook the provider invokes; the router holds no state of its own
// between callbacks.
type State int

const (
	// StateEntry plays the compliance disclosure and moves to the menu.
	StateEntry State = iota
	// StateMenu presents the 1/2/3 digit prompt.
	StateMenu
	// StateMenuSelect branches on the captured menu digit.
	StateMenuSelect
	// StateDialComplete inspects the outcome of a finished Dial.
	StateDialComplete
	// StatePINVerify checks the staff PIN.
	StatePINVerify
	// StateAgentMenu prompts staff for a patient number.
	StateAgentMenu
	// StateConfirmNumber validates the number and reads it back.
	StateConfirmNumber
	// StateDialPatient places the recorded outbound call to the patient.
	StateDialPatient
	// StateVoicemail records a caller message.
	StateVoicemail
	// StateGoodbye thanks the caller and hangs up after a recording.
	StateGoodbye
	// StateRecordingReady is the terminal notification that triggers the
	// recording pipeline; it produces no voice markup.
	StateRecordingReady
)

var stateNames = map[State]string{
	StateEntry:          "entry",
	StateMenu:           "menu",
	StateMenuSelect:     "menu_select",
	StateDialComplete:   "dial_complete",
	StatePINVerify:      "pin_verify",
	StateAgentMenu:      "agent_menu",
	StateConfirmNumber:  "confirm_number",
	StateDialPatient:    "dial_patient",
	StateVoicemail:      "voicemail",
	StateGoodbye:        "goodbye",
	StateRecordingReady: "recording_ready",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Event carries the provider callback parameters a routing decision may
// depend on. All branching is a pure function of the event plus wall-clock
// time; the provider owns the call session.
type Event struct {
	// From is the caller's number as reported by the provider.
	From string
	// CallSID is the provider-assigned opaque call identifier.
	CallSID string
	// Digits is the DTMF input gathered for this step, if any.
	Digits string
	// DialStatus is the outcome code of a finished Dial
	// (completed, no-answer, busy, failed, canceled).
	DialStatus string
	// DialDuration is the connected duration in seconds of a finished Dial.
	DialDuration int
	// AgentLeg marks callbacks for the agent-originated outbound relay,
	// carried as a query parameter on the declared action URL.
	AgentLeg bool
	// Number is the confirmed patient number carried between the confirm
	// step and the outbound dial, via action URL query parameter.
	Number string
}
