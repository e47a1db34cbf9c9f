// Package twiml renders the provider's voice and messaging control documents.
// The schema is owned by Twilio; this package only emits it. Verbs appear in
// the response in the order they are appended.
package twiml

import (
	"encoding/xml"
	"fmt"
)

// Header is the XML declaration Twilio expects at the top of every document.
const Header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// Response is the root element of a voice control document.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Append adds verbs to the response in order.
func (r *Response) Append(verbs ...any) {
	r.Verbs = append(r.Verbs, verbs...)
}

// Say speaks text with the configured TTS voice.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Play plays an audio resource by URL.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	Loop    int      `xml:"loop,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Pause waits for the given number of seconds.
type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

// Gather collects DTMF digits. Nested verbs play while gathering; if the
// caller enters nothing Twilio falls through to the verbs after the Gather.
type Gather struct {
	XMLName     xml.Name `xml:"Gather"`
	Action      string   `xml:"action,attr,omitempty"`
	Method      string   `xml:"method,attr,omitempty"`
	NumDigits   int      `xml:"numDigits,attr,omitempty"`
	Timeout     int      `xml:"timeout,attr,omitempty"`
	FinishOnKey string   `xml:"finishOnKey,attr,omitempty"`
	Verbs       []any
}

// Dial connects the caller to one or more numbers. Multiple nested Numbers
// ring in parallel; the first to answer takes the call.
type Dial struct {
	XMLName  xml.Name `xml:"Dial"`
	Action   string   `xml:"action,attr,omitempty"`
	Method   string   `xml:"method,attr,omitempty"`
	Timeout  int      `xml:"timeout,attr,omitempty"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Record   string   `xml:"record,attr,omitempty"`
	Numbers  []Number
}

// Number is a dial target nested inside Dial.
type Number struct {
	XMLName xml.Name `xml:"Number"`
	Value   string   `xml:",chardata"`
}

// Record captures caller audio, optionally transcribing it.
type Record struct {
	XMLName                       xml.Name `xml:"Record"`
	Action                        string   `xml:"action,attr,omitempty"`
	Method                        string   `xml:"method,attr,omitempty"`
	MaxLength                     int      `xml:"maxLength,attr,omitempty"`
	PlayBeep                      bool     `xml:"playBeep,attr"`
	Transcribe                    bool     `xml:"transcribe,attr,omitempty"`
	TranscribeCallback            string   `xml:"transcribeCallback,attr,omitempty"`
	RecordingStatusCallback       string   `xml:"recordingStatusCallback,attr,omitempty"`
	RecordingStatusCallbackMethod string   `xml:"recordingStatusCallbackMethod,attr,omitempty"`
}

// Redirect transfers control to another webhook URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// MessagingResponse is the root element of an SMS reply document.
type MessagingResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// Render marshals a control document with the XML declaration Twilio expects.
func Render(doc any) (string, error) {
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling twiml: %w", err)
	}
	return Header + string(out), nil
}
