package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/soyeahso/crewbuilder/internal/domain"
	"github.com/soyeahso/crewbuilder/internal/llm"
)

// HealthResponse reports liveness. Over plain HTTP only Status is set; the
// health RPC fills in the rest for authenticated clients.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Clients  int    `json:"clients,omitempty"`
	UptimeMs int64  `json:"uptimeMs,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found", "path": r.URL.Path})
}

// RequestHandler serves one RPC method.
type RequestHandler func(ctx *RequestContext)

// RequestContext is a single in-flight request and the client it came from.
// outcome records the response code for metrics.
type RequestContext struct {
	Client *Client
	Frame  Frame
	Server *Server

	outcome string
}

func (rc *RequestContext) Respond(payload any) {
	rc.outcome = "ok"
	rc.sent(rc.Client.Respond(rc.Frame.ID, payload))
}

func (rc *RequestContext) sent(err error) {
	if err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Str("outcome", rc.outcome).Msg("response not delivered")
	}
}

func (rc *RequestContext) RespondError(code, message string) {
	rc.RespondShape(ErrorShape{Code: code, Message: message})
}

// RespondShape sends a fully populated error response.
func (rc *RequestContext) RespondShape(shape ErrorShape) {
	rc.outcome = shape.Code
	rc.sent(rc.Client.RespondError(rc.Frame.ID, shape))
}

// Fail maps a domain error onto an error response.
func (rc *RequestContext) Fail(err error) {
	rc.RespondShape(errorShape(err))
}

// Params decodes the request params into target. Absent params leave target untouched.
func (rc *RequestContext) Params(target any) error {
	if len(rc.Frame.Params) == 0 {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}

// bind decodes params, answering invalid_params on failure.
func (rc *RequestContext) bind(target any) bool {
	if err := rc.Params(target); err != nil {
		rc.RespondError(CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		return false
	}
	return true
}

// errorShape classifies err by its domain type.
func errorShape(err error) ErrorShape {
	var (
		ve *domain.ValidationError
		nf *domain.NotFoundError
		ee *domain.ExecutionError
	)
	switch {
	case errors.As(err, &ve):
		return ErrorShape{Code: CodeValidation, Message: ve.Error(), Details: map[string]string{"field": ve.Field}}
	case errors.As(err, &nf):
		return ErrorShape{Code: CodeNotFound, Message: nf.Error(), Details: map[string]string{"kind": nf.Kind, "key": nf.Key}}
	case errors.As(err, &ee):
		var pe *llm.ProviderError
		return ErrorShape{
			Code:      CodeExecution,
			Message:   ee.Error(),
			Details:   map[string]string{"stage": ee.Stage},
			Retryable: errors.As(err, &pe) && pe.Temporary(),
		}
	default:
		return ErrorShape{Code: CodeInternal, Message: err.Error()}
	}
}
