// Package protocol defines the wire message shapes shared between dcgate and
// its clients. Socket traffic is JSON text frames; the HTTP API uses the same
// response body shapes without the callback envelope.
package protocol

import "encoding/json"

// Request is a single API call sent over a socket connection. CallbackID is
// chosen by the client and echoed back in the matching Response so concurrent
// calls can be multiplexed over one connection.
type Request struct {
	CallbackID    int             `json:"callback_id"`
	Method        string          `json:"method"`
	Module        string          `json:"module"`
	Version       int             `json:"version"`
	Path          string          `json:"path"`
	Data          json.RawMessage `json:"data,omitempty"`
	RangeStart    *int            `json:"range_start,omitempty"`
	RangeCount    *int            `json:"range_count,omitempty"`
	Authorization string          `json:"authorization,omitempty"`
}

// Response answers one socket Request.
type Response struct {
	CallbackID int             `json:"callback_id"`
	Code       int             `json:"code"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      *Error          `json:"error,omitempty"`
}

// Error carries a human-readable failure message.
type Error struct {
	Message string `json:"message"`
}

// Push is an unsolicited event delivered to a subscribed connection. It has
// no callback id; clients tell it apart from responses by the presence of the
// subscription field.
type Push struct {
	Subscription string          `json:"subscription"`
	Data         json.RawMessage `json:"data,omitempty"`
}
