package gateway

import (
	"net/http"
	"time"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		path := s.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, s.metrics.Handler())
	}

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all JSON-RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("session.info", s.rpcSessionInfo)

	s.Handle("catalog.list", s.rpcCatalogList)
	s.Handle("catalog.add", s.rpcCatalogAdd)
	s.Handle("catalog.resolve", s.rpcCatalogResolve)

	s.Handle("workflow.get", s.rpcWorkflowGet)
	s.Handle("workflow.append", s.rpcWorkflowAppend)
	s.Handle("workflow.remove", s.rpcWorkflowRemove)
	s.Handle("workflow.move", s.rpcWorkflowMove)
	s.Handle("workflow.clear", s.rpcWorkflowClear)

	s.Handle("template.list", s.rpcTemplateList)
	s.Handle("template.load", s.rpcTemplateLoad)

	s.Handle("task.list", s.rpcTaskList)
	s.Handle("task.update", s.rpcTaskUpdate)

	s.Handle("model.get", s.rpcModelGet)
	s.Handle("model.set", s.rpcModelSet)
	s.Handle("credential.set", s.rpcCredentialSet)

	s.Handle("code.generate", s.rpcCodeGenerate)
	s.Handle("crew.execute", s.rpcCrewExecute)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	var uptime int64
	if !s.startedAt.IsZero() {
		uptime = time.Since(s.startedAt).Milliseconds()
	}
	rc.Respond(HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Clients:  s.clients.Count(),
		UptimeMs: uptime,
	})
}

func (s *Server) rpcSessionInfo(rc *RequestContext) {
	rc.Respond(rc.Client.Session.Info())
}
