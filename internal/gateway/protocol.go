package gateway

import (
	"encoding/json"
	"fmt"
)

// Frame types for the WebSocket protocol.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Frame is the single envelope for every websocket message; Type selects
// which of the field groups below is populated.
type Frame struct {
	Type string `json:"type"`

	// Request fields
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Response fields
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Event fields
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`

	// Error (response only)
	Error *ErrorShape `json:"error,omitempty"`
}

// ErrorShape is the standard error format in response frames.
type ErrorShape struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
	RetryAfter int    `json:"retryAfterMs,omitempty"`
}

// Error codes carried in ErrorShape.Code.
const (
	CodeInvalidParams  = "invalid_params"
	CodeValidation     = "validation_error"
	CodeNotFound       = "not_found"
	CodeExecution      = "execution_error"
	CodeRateLimited    = "rate_limited"
	CodeMethodNotFound = "method_not_found"
	CodeUnauthorized   = "unauthorized"
	CodeProtocol       = "protocol_error"
	CodeInternal       = "internal_error"
)

// Server-pushed event names.
const (
	EventChallenge         = "connect.challenge"
	EventCrewState         = "crew.state"
	EventCrewTask          = "crew.task"
	EventTemplatesReloaded = "templates.reloaded"
)

// ConnectParams is the payload of the client's first request. A zero
// protocol bound is open; SessionID resumes a stored builder session.
type ConnectParams struct {
	MinProtocol int          `json:"minProtocol"`
	MaxProtocol int          `json:"maxProtocol"`
	Client      ClientInfo   `json:"client"`
	Auth        *ConnectAuth `json:"auth,omitempty"`
	SessionID   string       `json:"sessionId,omitempty"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Mode     string `json:"mode"` // "app" | "cli"
}

// ConnectAuth carries credentials in the connect request.
type ConnectAuth struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// HelloOK answers a successful connect.
type HelloOK struct {
	Protocol int          `json:"protocol"`
	Server   ServerInfo   `json:"server"`
	Session  SessionHello `json:"session"`
	Features Features     `json:"features"`
	Policy   ServerPolicy `json:"policy"`
}

// SessionHello tells the client which builder session it is attached to.
type SessionHello struct {
	ID      string `json:"id"`
	Resumed bool   `json:"resumed"`
}

// ServerInfo identifies the gateway server.
type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Host    string `json:"host,omitempty"`
	ConnID  string `json:"connId"`
}

// Features lists the RPC methods and pushed events a client can use.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

// ServerPolicy tells the client the limits it must respect.
type ServerPolicy struct {
	MaxPayload       int `json:"maxPayload"`
	MaxBufferedBytes int `json:"maxBufferedBytes"`
	ExecutePerMinute int `json:"executePerMinute"`
	ExecuteBurst     int `json:"executeBurst"`
}

// ProtocolVersion is the frame protocol spoken by this server.
const ProtocolVersion = 1

func encode(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return raw, nil
}

// NewRequest builds a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := encode(params)
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, err
}

// NewResponse builds a successful response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := encode(payload)
	return Frame{Type: FrameTypeResponse, ID: id, OK: ptr(true), Payload: raw}, err
}

// NewErrorResponse builds a failed response frame.
func NewErrorResponse(id string, e ErrorShape) Frame {
	return Frame{Type: FrameTypeResponse, ID: id, OK: ptr(false), Error: &e}
}

// NewEvent builds an event frame. seq is 0 for events outside the
// broadcast sequence.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := encode(payload)
	return Frame{Type: FrameTypeEvent, Event: event, Payload: raw, Seq: seq}, err
}

func ptr[T any](v T) *T { return &v }
