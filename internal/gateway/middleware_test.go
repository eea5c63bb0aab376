package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/crewbuilder/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("body"))
	})
}

func serve(h http.Handler, method, origin string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/health", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := chain(okHandler(), mark("outer"), mark("middle"), mark("inner"))
	serve(h, http.MethodGet, "", nil)
	assert.Equal(t, []string{"outer", "middle", "inner"}, order)
}

func TestRequestID(t *testing.T) {
	generated := serve(requestID(okHandler()), http.MethodGet, "", nil)
	assert.Len(t, generated.Header().Get(requestIDHeader), 36)

	kept := serve(requestID(okHandler()), http.MethodGet, "", map[string]string{requestIDHeader: "req-7"})
	assert.Equal(t, "req-7", kept.Header().Get(requestIDHeader))
}

func TestAccessLogKeepsResponse(t *testing.T) {
	rr := serve(accessLog(logging.Nop())(okHandler()), http.MethodGet, "", nil)
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "body", rr.Body.String())
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"unconfigured denies", nil, "http://localhost:3000", ""},
		{"wildcard echoes origin", []string{"*"}, "http://localhost:3000", "http://localhost:3000"},
		{"listed origin", []string{"http://a.test", "http://b.test"}, "http://b.test", "http://b.test"},
		{"unlisted origin", []string{"http://a.test"}, "http://evil.test", ""},
		{"no origin header", []string{"*"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(cors(originPolicy(tt.allowed))(okHandler()), http.MethodGet, tt.origin, nil)
			assert.Equal(t, tt.want, rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, http.StatusTeapot, rr.Code)
		})
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	rr := serve(cors(originPolicy{"*"})(okHandler()), http.MethodOptions, "http://a.test", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Equal(t, "86400", rr.Header().Get("Access-Control-Max-Age"))
}

func TestCheckWebSocketOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"non-browser client", nil, "", true},
		{"empty list", nil, "http://evil.test", false},
		{"wildcard", []string{"*"}, "http://any.test", true},
		{"listed", []string{"http://one.test", "http://two.test"}, "http://two.test", true},
		{"unlisted", []string{"http://one.test"}, "http://three.test", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checkWebSocketOrigin(tt.allowed)(req))
		})
	}
}

func TestWithMiddleware(t *testing.T) {
	h := withMiddleware(okHandler(), logging.Nop(), []string{"http://ui.test"})

	rr := serve(h, http.MethodGet, "http://ui.test", nil)
	require.Equal(t, http.StatusTeapot, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
	assert.Equal(t, "http://ui.test", rr.Header().Get("Access-Control-Allow-Origin"))

	denied := serve(h, http.MethodGet, "http://other.test", nil)
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, denied.Header().Get(requestIDHeader))
}

func TestStatusWriterHijackUnsupported(t *testing.T) {
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	_, _, err := sw.Hijack()
	assert.Error(t, err)
}
