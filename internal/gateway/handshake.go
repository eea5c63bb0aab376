package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/crewbuilder/internal/hooks"
	"github.com/soyeahso/crewbuilder/internal/version"
)

const (
	handshakeTimeout = 10 * time.Second
	maxBufferedBytes = 16 << 20
)

// handshakeError is a handshake failure the client is told about before
// the socket closes.
type handshakeError struct {
	reqID string
	code  string
	msg   string
}

func (e *handshakeError) Error() string { return e.code + ": " + e.msg }

// handleWebSocket upgrades the request, runs the handshake and then serves
// the connection until it closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("too many failed handshakes")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)

	client, err := s.handshake(conn)
	if err != nil {
		var he *handshakeError
		if errors.As(err, &he) {
			rejectHandshake(conn, he)
		}
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake failed")
		s.authLimiter.recordFailure(r.RemoteAddr)
		_ = conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
		s.detachSession(client)
	}()
	s.readLoop(client)
}

// handshake runs challenge, connect and hello, then attaches the session.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	if err := s.sendChallenge(conn); err != nil {
		return nil, err
	}
	reqID, params, err := readConnect(conn)
	if err != nil {
		return nil, err
	}
	if err := negotiate(reqID, params); err != nil {
		return nil, err
	}
	authResult := Authorize(s.auth, params.Auth)
	if !authResult.OK {
		return nil, &handshakeError{reqID: reqID, code: CodeUnauthorized, msg: authResult.Reason}
	}

	_ = conn.SetReadDeadline(time.Time{})

	att := s.attachSession(params.SessionID)
	session := att.session
	client := NewClient(conn, params.Client, authResult, session, s.cfg.Gateway.ExecuteRate,
		s.log.Sub("ws").With("session", session.ID()))

	resp, err := NewResponse(reqID, s.hello(client.ConnID, session.ID(), att.resumed))
	if err == nil {
		err = conn.WriteJSON(resp)
	}
	if err != nil {
		s.releaseSession(session)
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("clientId", params.Client.ID).
		Str("clientVersion", params.Client.Version).
		Str("authMethod", authResult.Method).
		Str("session", session.ID()).
		Bool("resumed", att.resumed).
		Bool("shared", att.joined).
		Msg("client connected")

	if !att.joined {
		s.emit(context.Background(), hooks.EventSessionStart, map[string]any{
			hooks.KeySession: session.ID(),
			"resumed":        att.resumed,
		})
	}
	return client, nil
}

func (s *Server) sendChallenge(conn *websocket.Conn) error {
	challenge, err := NewEvent(EventChallenge, map[string]any{
		"nonce": uuid.NewString(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return fmt.Errorf("encoding challenge: %w", err)
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return fmt.Errorf("sending challenge: %w", err)
	}
	return nil
}

// readConnect reads the client's first frame, which must be a connect request.
func readConnect(conn *websocket.Conn) (string, ConnectParams, error) {
	var params ConnectParams
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", params, fmt.Errorf("reading connect: %w", err)
	}
	var frame Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return "", params, &handshakeError{code: CodeProtocol, msg: "malformed frame"}
	}
	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		return "", params, &handshakeError{reqID: frame.ID, code: CodeProtocol, msg: "expected connect request"}
	}
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		return "", params, &handshakeError{reqID: frame.ID, code: CodeInvalidParams, msg: "invalid connect params"}
	}
	return frame.ID, params, nil
}

// negotiate checks that ProtocolVersion falls in the client's range. Zero
// bounds are open.
func negotiate(reqID string, p ConnectParams) error {
	if (p.MinProtocol > 0 && ProtocolVersion < p.MinProtocol) ||
		(p.MaxProtocol > 0 && ProtocolVersion > p.MaxProtocol) {
		return &handshakeError{
			reqID: reqID,
			code:  CodeProtocol,
			msg:   fmt.Sprintf("server speaks protocol %d, client wants %d..%d", ProtocolVersion, p.MinProtocol, p.MaxProtocol),
		}
	}
	return nil
}

func (s *Server) hello(connID, sessionID string, resumed bool) HelloOK {
	return HelloOK{
		Protocol: ProtocolVersion,
		Server:   ServerInfo{Version: s.version, Commit: version.Commit, ConnID: connID},
		Session:  SessionHello{ID: sessionID, Resumed: resumed},
		Features: Features{
			Methods: s.Methods(),
			Events:  []string{EventChallenge, EventCrewState, EventCrewTask, EventTemplatesReloaded},
		},
		Policy: ServerPolicy{
			MaxPayload:       maxPayload,
			MaxBufferedBytes: maxBufferedBytes,
			ExecutePerMinute: s.cfg.Gateway.ExecuteRate.PerMinute,
			ExecuteBurst:     s.cfg.Gateway.ExecuteRate.Burst,
		},
	}
}

// rejectHandshake reports a handshake error and starts the close handshake.
func rejectHandshake(conn *websocket.Conn, e *handshakeError) {
	_ = conn.WriteJSON(NewErrorResponse(e.reqID, ErrorShape{Code: e.code, Message: e.msg}))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, e.msg))
}
