package ivr

import (
	"encoding/xml"

	"github.com/rotisserie/eris"
)

// Document is a TwiML voice response. The field order matters: verbs
// are executed by the provider in document order, so a Say always
// precedes a Dial.
type Document struct {
	XMLName xml.Name `xml:"Response"`
	Gather  *Gather  `xml:"Gather,omitempty"`
	Say     string   `xml:"Say,omitempty"`
	Dial    *Dial    `xml:"Dial,omitempty"`
}

// Gather prompts the caller and collects digits, posting them to
// Action.
type Gather struct {
	NumDigits int    `xml:"numDigits,attr"`
	Action    string `xml:"action,attr"`
	Method    string `xml:"method,attr"`
	Timeout   int    `xml:"timeout,attr"`
	Say       string `xml:"Say"`
}

// Dial transfers the call to Number, optionally recording, and posts
// completion to Action.
type Dial struct {
	Record string `xml:"record,attr,omitempty"`
	Action string `xml:"action,attr,omitempty"`
	Method string `xml:"method,attr,omitempty"`
	Number string `xml:",chardata"`
}

// Render serializes the document with an XML declaration.
func (d *Document) Render() (string, error) {
	body, err := xml.Marshal(d)
	if err != nil {
		return "", eris.Wrap(err, "ivr: marshal twiml")
	}
	return xml.Header + string(body), nil
}

// GatherDocument builds the prompt-and-collect response for one
// scripted question.
func GatherDocument(question, action string) *Document {
	return &Document{
		Gather: &Gather{
			NumDigits: 1,
			Action:    action,
			Method:    "POST",
			Timeout:   10,
			Say:       question,
		},
	}
}

// TransferDocument builds the terminal thank-you plus recorded agent
// transfer.
func TransferDocument(agentNumber, action string) *Document {
	return &Document{
		Say: "Thank you. Please hold while I transfer you to a live agent.",
		Dial: &Dial{
			Record: "record-from-answer-dual",
			Action: action,
			Method: "POST",
			Number: agentNumber,
		},
	}
}

// ApologyDocument is the fail-soft response: the provider requires
// well-formed TwiML on every callback, even when we blew up.
func ApologyDocument() *Document {
	return &Document{
		Say: "We're sorry, but we encountered an error. Please try your call again later.",
	}
}
