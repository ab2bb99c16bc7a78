// Package twiml renders the voice-response markup the telephony provider
// executes: speak text, play audio, gather the next speech input, hang up.
package twiml

import (
	"encoding/xml"

	"github.com/pkg/errors"
)

// DefaultVoice is the provider voice used for spoken text.
const DefaultVoice = "alice"

// Say speaks fixed text to the caller.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Play plays a URL-referenced audio file.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Gather collects the caller's next speech input with automatic
// end-of-speech detection.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Response is an ordered voice-response document.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// NewResponse creates an empty response.
func NewResponse() *Response {
	return &Response{}
}

// Say appends a spoken-text verb using the default voice.
func (r *Response) Say(text string) *Response {
	r.Verbs = append(r.Verbs, Say{Voice: DefaultVoice, Text: text})
	return r
}

// Play appends an audio playback verb.
func (r *Response) Play(url string) *Response {
	r.Verbs = append(r.Verbs, Play{URL: url})
	return r
}

// GatherSpeech appends a speech gather posting to action.
func (r *Response) GatherSpeech(action string) *Response {
	r.Verbs = append(r.Verbs, Gather{
		Input:         "speech",
		Action:        action,
		Method:        "POST",
		SpeechTimeout: "auto",
	})
	return r
}

// Hangup appends a hangup verb.
func (r *Response) Hangup() *Response {
	r.Verbs = append(r.Verbs, Hangup{})
	return r
}

// Render serializes the response with the XML declaration header.
func (r *Response) Render() (string, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return "", errors.Wrap(err, "failed to render voice response")
	}
	return xml.Header + string(body), nil
}
