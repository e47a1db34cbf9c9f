package router

// DirectiveKind discriminates what the provider should do next.
type DirectiveKind int

const (
	// KindHangup speaks any Say lines and ends the call.
	KindHangup DirectiveKind = iota
	// KindGather speaks prompts and collects digits.
	KindGather
	// KindDial connects the call to one or more numbers.
	KindDial
	// KindRecord records caller audio.
	KindRecord
	// KindRedirect transfers control to another state's webhook.
	KindRedirect
	// KindAck acknowledges a pure notification callback with no markup.
	KindAck
)

// Directive is the transport-independent instruction a routing decision
// produces. The HTTP layer renders it into provider markup; nothing in this
// package knows about URLs or XML.
type Directive struct {
	Kind DirectiveKind

	// Say lines are spoken before the action for every kind except Ack.
	Say []string

	Gather   *GatherSpec
	Dial     *DialSpec
	Record   *RecordSpec
	Redirect State
}

// GatherSpec describes a digit-collection step.
type GatherSpec struct {
	// Prompts are spoken while gathering.
	Prompts []string
	// NumDigits stops the gather after this many digits (0 = unbounded).
	NumDigits int
	// FinishOnKey terminates an unbounded gather (the pound key).
	FinishOnKey string
	// TimeoutSecs is how long to wait for input.
	TimeoutSecs int
	// Action is the state invoked with the captured digits.
	Action State
	// Params are extra values carried to the action via its URL.
	Params map[string]string
	// OnTimeout is the state control falls through to with no input.
	OnTimeout State
	// TimeoutSay lines are spoken before falling through.
	TimeoutSay []string
}

// DialSpec describes an outbound connection.
type DialSpec struct {
	// Numbers ring in parallel; the first to answer takes the call.
	Numbers []string
	// CallerID presented to the dialed parties.
	CallerID string
	// TimeoutSecs is the per-attempt ring timeout.
	TimeoutSecs int
	// Recorded enables call recording from answer.
	Recorded bool
	// Action is the state invoked with the dial outcome.
	Action State
	// AgentLeg tags the action callback as an agent-originated leg.
	AgentLeg bool
}

// RecordSpec describes an audio recording step.
type RecordSpec struct {
	// MaxSeconds bounds the recording length.
	MaxSeconds int
	// Transcribe requests provider-side transcription.
	Transcribe bool
	// Action is the state the call continues to when recording ends.
	Action State
}

func sayHangup(lines ...string) Directive {
	return Directive{Kind: KindHangup, Say: lines}
}

func redirect(to State, lines ...string) Directive {
	return Directive{Kind: KindRedirect, Say: lines, Redirect: to}
}
