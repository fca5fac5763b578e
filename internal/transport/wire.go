// Package transport carries dump requests between heroshell and dumpd over
// UDP. Each request and each response is exactly one datagram.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Request kinds understood by dumpd.
const (
	KindGetDump  = "get_dump"
	KindSaveDump = "save_dump"
)

// Defaults shared by client and server.
const (
	DefaultPort       = 1448
	DefaultBufferSize = 8096
)

var (
	// ErrDatagramTooLarge is returned when an encoded message does not fit
	// the configured buffer.
	ErrDatagramTooLarge = errors.New("datagram exceeds buffer size")
	// ErrNoResponse is returned when the server does not answer in time.
	ErrNoResponse = errors.New("no response from server")
)

// Request is a client call.
type Request struct {
	ID   uuid.UUID `json:"id"`
	Kind string    `json:"kind"`
	Data string    `json:"data,omitempty"`
}

// NewRequest creates a request with a fresh id.
func NewRequest(kind, data string) Request {
	return Request{ID: uuid.New(), Kind: kind, Data: data}
}

// Response answers the request with the same ID.
type Response struct {
	ID      uuid.UUID `json:"id"`
	OK      bool      `json:"ok"`
	Message string    `json:"message"`
}

// Reply builds a successful response to r.
func (r Request) Reply(message string) Response {
	return Response{ID: r.ID, OK: true, Message: message}
}

// Fail builds an error response to r.
func (r Request) Fail(message string) Response {
	return Response{ID: r.ID, OK: false, Message: message}
}

// encode marshals v and enforces the datagram size limit.
func encode(v any, limit int) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode datagram: %w", err)
	}
	if limit > 0 && len(data) > limit {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrDatagramTooLarge, len(data), limit)
	}
	return data, nil
}

func decodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("failed to decode request: %w", err)
	}
	if req.Kind == "" {
		return Request{}, fmt.Errorf("failed to decode request: missing kind")
	}
	return req, nil
}

func decodeResponse(data []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}
