package gateway

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/crewbuilder/internal/config"
	"github.com/soyeahso/crewbuilder/internal/crew"
	"github.com/soyeahso/crewbuilder/internal/domain"
	"github.com/soyeahso/crewbuilder/internal/hooks"
	"github.com/soyeahso/crewbuilder/internal/llm"
	"github.com/soyeahso/crewbuilder/internal/logging"
	"github.com/soyeahso/crewbuilder/internal/metrics"
	"github.com/soyeahso/crewbuilder/internal/store"
	"github.com/soyeahso/crewbuilder/internal/templates"
	"github.com/soyeahso/crewbuilder/internal/version"
)

// maxPayload bounds a single inbound frame.
const maxPayload = 4 * 1024 * 1024

// Server is the crewbuilder gateway HTTP + WebSocket server. Each
// connection owns one builder session.
type Server struct {
	cfg      config.Config
	auth     ResolvedAuth
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	version  string
	eventSeq atomic.Int64

	templates  *templates.Registry
	predefined *crew.Predefined
	// ownPredefined is set when predefined is derived from templates and
	// must follow template reloads.
	ownPredefined bool
	sessions      crew.SessionStore
	liveMu        sync.Mutex
	live          map[string]*liveSession
	executor      *crew.Executor
	mode          crew.ResolutionMode
	model         domain.ModelConfig

	// Hook manager and metrics (optional)
	hooks   *hooks.Manager
	metrics *metrics.Metrics

	startedAt   time.Time
	listenAddr  atomic.Value
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithTemplates sets the template registry. Its published agents join the
// predefined catalog unless WithPredefined is also given.
func WithTemplates(reg *templates.Registry) ServerOption {
	return func(s *Server) {
		s.templates = reg
	}
}

// WithPredefined sets the predefined agent partition shared by all sessions.
func WithPredefined(p *crew.Predefined) ServerOption {
	return func(s *Server) {
		s.predefined = p
	}
}

// WithSessionStore sets where sessions are persisted.
func WithSessionStore(st crew.SessionStore) ServerOption {
	return func(s *Server) {
		s.sessions = st
	}
}

// WithExecutor sets the crew executor used by crew.execute.
func WithExecutor(e *crew.Executor) ServerOption {
	return func(s *Server) {
		s.executor = e
	}
}

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithMetrics enables request and execution metrics.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a new gateway server. Missing collaborators are built from
// cfg: built-in templates, a memory session store and an executor over the
// configured LLM provider.
func New(cfg config.Config, log *logging.Logger, opts ...ServerOption) *Server {
	mode, err := crew.ParseResolutionMode(cfg.Crew.ResolutionMode)
	if err != nil {
		mode = crew.Lenient
	}
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Gateway.Auth),
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("clients")),
		handlers:    make(map[string]RequestHandler),
		live:        make(map[string]*liveSession),
		version:     version.Version,
		mode:        mode,
		model:       cfg.Model.Settings(),
		authLimiter: newAuthRateLimiter(authRateWindow),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Gateway.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.templates == nil {
		s.templates, _ = templates.NewRegistry("", log)
	}
	if s.predefined == nil {
		s.predefined = crew.NewPredefined(s.predefinedAgents()...)
		s.ownPredefined = true
	}
	if s.sessions == nil {
		s.sessions, _ = store.OpenSessionStore(config.SessionConfig{IdleMinutes: cfg.Session.IdleMinutes}, "", log)
	}
	if s.executor == nil {
		s.executor = crew.NewExecutor(llm.NewRegistryFromConfig(cfg.LLM, log), log,
			crew.WithTimeout(time.Duration(cfg.Execution.TimeoutSeconds)*time.Second),
			crew.WithVerbose(cfg.Execution.Verbose))
	}

	s.registerRPCHandlers()
	return s
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the list of registered RPC method names.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// resolveBindAddr maps the bind mode to a listen address. Unknown modes
// stay on loopback.
func resolveBindAddr(cfg config.GatewayConfig) string {
	host := "127.0.0.1"
	switch cfg.Bind {
	case "lan", "auto":
		host = "0.0.0.0"
	case "custom":
		host = cmp.Or(cfg.CustomBindHost, "0.0.0.0")
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}

// shutdownGrace bounds how long in-flight HTTP requests get on shutdown.
const shutdownGrace = 10 * time.Second

// Start listens on the configured address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", resolveBindAddr(s.cfg.Gateway))
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the gateway on ln until ctx ends, then closes every client and
// drains HTTP requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)

	s.httpServer = &http.Server{
		Handler:     withMiddleware(s.metrics.Instrument(mux), s.log, s.cfg.Gateway.AllowedOrigins),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	s.startedAt = time.Now()
	addr := ln.Addr().String()
	s.listenAddr.Store(addr)

	if s.cfg.Gateway.Bind != "loopback" && s.auth.Mode == "none" {
		s.log.Warn().Str("bind", s.cfg.Gateway.Bind).Msg("gateway reachable off-host with auth disabled")
	}
	s.log.Info().
		Str("addr", addr).
		Str("auth", s.auth.Mode).
		Str("mode", string(s.mode)).
		Int("methods", len(s.handlers)).
		Msg("gateway listening")
	s.emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": addr})

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.log.Info().Msg("gateway shutting down")
		s.clients.CloseAll()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.httpServer.Shutdown(sctx); err != nil {
			s.log.Warn().Err(err).Msg("gateway shutdown incomplete")
		}
		s.emit(context.Background(), hooks.EventGatewayStop, nil)
	}()

	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}

// Addr is the address the gateway listens on, or "" before Serve.
func (s *Server) Addr() string {
	addr, _ := s.listenAddr.Load().(string)
	return addr
}

// sessionOptions are the options every session is created or restored with.
func (s *Server) sessionOptions() crew.Options {
	return crew.Options{
		Mode:       s.mode,
		Model:      s.model,
		Predefined: s.predefined,
		Templates:  s.templates,
	}
}

// liveSession is a session held by at least one connection.
type liveSession struct {
	session *crew.Session
	conns   int
}

// attachment is the outcome of attachSession. joined is set when another
// connection already holds the session.
type attachment struct {
	session *crew.Session
	resumed bool
	joined  bool
}

// attachSession returns the session stored under id. A session already held
// by another connection is shared rather than restored again, so both
// connections edit the same state. Unknown or unusable ids start fresh.
func (s *Server) attachSession(id string) attachment {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()

	if ls, ok := s.live[id]; ok && id != "" {
		ls.conns++
		return attachment{session: ls.session, resumed: true, joined: true}
	}
	sess, resumed := s.openSession(id)
	s.live[sess.ID()] = &liveSession{session: sess, conns: 1}
	return attachment{session: sess, resumed: resumed}
}

// openSession restores id from the store, or creates and saves a new session.
func (s *Server) openSession(id string) (*crew.Session, bool) {
	if id != "" {
		snap, err := s.sessions.Load(context.Background(), id)
		if err == nil {
			sess, err := crew.RestoreSession(snap, s.sessionOptions())
			if err == nil {
				return sess, true
			}
			s.log.Warn().Err(err).Str("session", id).Msg("stored session is unusable, starting fresh")
		} else {
			var nf *domain.NotFoundError
			if !errors.As(err, &nf) {
				s.log.Warn().Err(err).Str("session", id).Msg("loading session failed, starting fresh")
			}
		}
	}
	sess := crew.NewSession(s.sessionOptions())
	s.persist(sess)
	return sess, false
}

// releaseSession drops one connection's hold on sess and reports whether it
// was the last one.
func (s *Server) releaseSession(sess *crew.Session) bool {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	ls, ok := s.live[sess.ID()]
	if !ok {
		return true
	}
	if ls.conns--; ls.conns > 0 {
		return false
	}
	delete(s.live, sess.ID())
	return true
}

// detachSession persists the connection's session once it disconnects.
// session_end fires when the last connection holding it leaves.
func (s *Server) detachSession(c *Client) {
	if c.Session == nil {
		return
	}
	s.persist(c.Session)
	if !s.releaseSession(c.Session) {
		return
	}
	s.emit(context.Background(), hooks.EventSessionEnd, map[string]any{
		hooks.KeySession: c.Session.ID(),
	})
}

// persist saves the session snapshot. Failures are logged, not surfaced.
func (s *Server) persist(sess *crew.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sessions.Save(ctx, sess.Snapshot()); err != nil {
		s.log.Warn().Err(err).Str("session", sess.ID()).Msg("saving session failed")
	}
}

// emit forwards an event to the hook manager, if any.
func (s *Server) emit(ctx context.Context, event string, data map[string]any) {
	if s.hooks != nil {
		s.hooks.Emit(ctx, event, data)
	}
}

// predefinedAgents is the built-in catalog plus every agent the templates
// publish.
func (s *Server) predefinedAgents() []domain.TemplateAgent {
	return append(crew.DefaultAgents(), s.templates.Agents()...)
}

// TemplatesReloaded refreshes the template agents in the predefined catalog
// and tells every client that the template set changed. It is meant as the
// callback of templates.Registry.Watch.
func (s *Server) TemplatesReloaded(err error) {
	if err != nil {
		s.log.Warn().Err(err).Msg("template reload failed, keeping previous set")
		return
	}
	if s.ownPredefined {
		s.predefined.Replace(s.predefinedAgents()...)
	}
	names := s.templates.Names()
	n := s.clients.Broadcast(EventTemplatesReloaded, map[string]any{
		"templates": names,
	}, s.eventSeq.Add(1))
	s.log.Info().Int("templates", len(names)).Int("clients", n).Msg("templates reloaded")
}

// readLoop processes incoming frames from an authenticated client.
func (s *Server) readLoop(client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}

		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}

		s.dispatch(client, frame)
	}
}

// dispatch routes a request frame to the appropriate handler.
func (s *Server) dispatch(client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    CodeMethodNotFound,
			Message: "unknown method: " + frame.Method,
		})
		s.metrics.ObserveRPC("unknown", CodeMethodNotFound)
		return
	}

	rc := &RequestContext{
		Client: client,
		Frame:  frame,
		Server: s,
	}

	handler(rc)
	if rc.outcome != "" {
		s.metrics.ObserveRPC(frame.Method, rc.outcome)
	}
}
