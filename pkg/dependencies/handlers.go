package dependencies

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/depgraph/pkg/httputil"
	"github.com/platinummonkey/depgraph/pkg/workspace"
)

// Handlers exposes graph analyses over HTTP. Every request builds a fresh
// graph from the workspace's current manifests.
type Handlers struct {
	store    workspace.Store
	builder  *Builder
	defaults BuildOptions
	log      *logrus.Logger
}

// NewHandlers creates handlers building graphs with the given default options
func NewHandlers(store workspace.Store, builder *Builder, defaults BuildOptions, log *logrus.Logger) *Handlers {
	if log == nil {
		log = logrus.New()
	}
	return &Handlers{
		store:    store,
		builder:  builder,
		defaults: defaults,
		log:      log,
	}
}

// RegisterRoutes registers the workspace analysis routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	ws := router.PathPrefix("/workspaces/{id}").Subrouter()
	ws.HandleFunc("/graph", h.analyze(h.getGraph)).Methods("GET")
	ws.HandleFunc("/cycles", h.analyze(h.getCycles)).Methods("GET")
	ws.HandleFunc("/links", h.analyze(h.getCrossRepoLinks)).Methods("GET")
	ws.HandleFunc("/metrics", h.analyze(h.getMetrics)).Methods("GET")
	ws.HandleFunc("/impact", h.analyze(h.getImpact)).Methods("GET")
	ws.HandleFunc("/duplicates", h.analyze(h.getDuplicates)).Methods("GET")
	ws.HandleFunc("/path", h.analyze(h.getShortestPath)).Methods("GET")
	ws.HandleFunc("/transitive", h.analyze(h.getTransitive)).Methods("GET")
	ws.HandleFunc("/order", h.analyze(h.getTopologicalOrder)).Methods("GET")
	ws.HandleFunc("/summary", h.analyze(h.getSummary)).Methods("GET")
	ws.HandleFunc("/visualization", h.analyze(h.getVisualization)).Methods("GET")
}

type analysisHandler func(w http.ResponseWriter, r *http.Request, result *BuildResult, analyzer *GraphAnalyzer)

// analyze loads the workspace, builds its graph and hands both to next
func (h *Handlers) analyze(next analysisHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := httputil.ParsePathStringOrError(w, r, "id")
		if !ok {
			return
		}

		opts, err := h.buildOptions(r)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}

		ws, err := h.store.GetWorkspace(r.Context(), id)
		if errors.Is(err, workspace.ErrWorkspaceNotFound) {
			httputil.WriteNotFoundError(w, fmt.Sprintf("workspace %s not found", id))
			return
		}
		if err != nil {
			h.log.WithError(err).Errorf("Failed to load workspace %s", id)
			httputil.WriteInternalError(w, fmt.Errorf("failed to load workspace"))
			return
		}

		result := h.builder.BuildDependencyGraph(r.Context(), ws.ID, ws.Repositories, opts)
		next(w, r, result, NewGraphAnalyzer(result.Graph))
	}
}

// buildOptions overrides the defaults with the dev, peer, transitive and
// depth query parameters
func (h *Handlers) buildOptions(r *http.Request) (BuildOptions, error) {
	opts := h.defaults
	var err error

	if opts.IncludeDevDependencies, err = httputil.ParseQueryBool(r, "dev", opts.IncludeDevDependencies); err != nil {
		return opts, err
	}
	if opts.IncludePeerDependencies, err = httputil.ParseQueryBool(r, "peer", opts.IncludePeerDependencies); err != nil {
		return opts, err
	}
	if opts.IncludeTransitiveDependencies, err = httputil.ParseQueryBool(r, "transitive", opts.IncludeTransitiveDependencies); err != nil {
		return opts, err
	}
	if opts.MaxDepth, err = httputil.ParseQueryInt(r, "depth", opts.MaxDepth); err != nil {
		return opts, err
	}
	if opts.MaxDepth < 0 {
		return opts, fmt.Errorf("depth must not be negative")
	}
	return opts, nil
}

// getGraph handles GET /workspaces/{id}/graph
func (h *Handlers) getGraph(w http.ResponseWriter, r *http.Request, result *BuildResult, _ *GraphAnalyzer) {
	httputil.WriteSuccess(w, result)
}

// getCycles handles GET /workspaces/{id}/cycles
func (h *Handlers) getCycles(w http.ResponseWriter, r *http.Request, result *BuildResult, a *GraphAnalyzer) {
	cycles := a.DetectCycles()
	httputil.WriteSuccess(w, map[string]interface{}{
		"cycles":   cycles,
		"count":    len(cycles),
		"failures": result.Failures,
	})
}

// getCrossRepoLinks handles GET /workspaces/{id}/links
func (h *Handlers) getCrossRepoLinks(w http.ResponseWriter, r *http.Request, result *BuildResult, a *GraphAnalyzer) {
	links := a.FindCrossRepoLinks()
	httputil.WriteSuccess(w, map[string]interface{}{
		"links":    links,
		"count":    len(links),
		"failures": result.Failures,
	})
}

// getMetrics handles GET /workspaces/{id}/metrics
func (h *Handlers) getMetrics(w http.ResponseWriter, r *http.Request, result *BuildResult, a *GraphAnalyzer) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"repositories": a.CalculateRepositoryMetrics(),
		"failures":     result.Failures,
	})
}

// getImpact handles GET /workspaces/{id}/impact?node=
func (h *Handlers) getImpact(w http.ResponseWriter, r *http.Request, _ *BuildResult, a *GraphAnalyzer) {
	nodeID, ok := httputil.RequireQuery(w, r, "node")
	if !ok {
		return
	}

	impact, found := a.AnalyzeImpact(nodeID)
	if !found {
		httputil.WriteNotFoundError(w, fmt.Sprintf("node %s not found", nodeID))
		return
	}
	httputil.WriteSuccess(w, impact)
}

// getDuplicates handles GET /workspaces/{id}/duplicates
func (h *Handlers) getDuplicates(w http.ResponseWriter, r *http.Request, _ *BuildResult, a *GraphAnalyzer) {
	duplicates := a.FindDuplicateDependencies()

	latest := make(map[string]string, len(duplicates))
	for name, entries := range duplicates {
		latest[name] = LatestVersion(entries)
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"duplicates": duplicates,
		"latest":     latest,
		"count":      len(duplicates),
	})
}

// getShortestPath handles GET /workspaces/{id}/path?from=&to=
func (h *Handlers) getShortestPath(w http.ResponseWriter, r *http.Request, _ *BuildResult, a *GraphAnalyzer) {
	from, ok := httputil.RequireQuery(w, r, "from")
	if !ok {
		return
	}
	to, ok := httputil.RequireQuery(w, r, "to")
	if !ok {
		return
	}

	path, found := a.FindShortestPath(from, to)
	if !found {
		httputil.WriteNotFoundError(w, fmt.Sprintf("no path from %s to %s", from, to))
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"path": path,
		"hops": len(path) - 1,
	})
}

// getTransitive handles GET /workspaces/{id}/transitive?node=
func (h *Handlers) getTransitive(w http.ResponseWriter, r *http.Request, _ *BuildResult, a *GraphAnalyzer) {
	nodeID, ok := httputil.RequireQuery(w, r, "node")
	if !ok {
		return
	}

	deps, found := a.GetTransitiveDependencies(nodeID)
	if !found {
		httputil.WriteNotFoundError(w, fmt.Sprintf("node %s not found", nodeID))
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"node":         nodeID,
		"dependencies": deps,
		"count":        len(deps),
	})
}

// getTopologicalOrder handles GET /workspaces/{id}/order
func (h *Handlers) getTopologicalOrder(w http.ResponseWriter, r *http.Request, _ *BuildResult, a *GraphAnalyzer) {
	order, err := a.TopologicalOrder()
	if err != nil {
		httputil.WriteError(w, http.StatusConflict, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"order": order})
}

// getSummary handles GET /workspaces/{id}/summary
func (h *Handlers) getSummary(w http.ResponseWriter, r *http.Request, result *BuildResult, a *GraphAnalyzer) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"summary":  a.GenerateSummary(),
		"failures": result.Failures,
	})
}

// getVisualization handles GET /workspaces/{id}/visualization
// Query parameters:
//   - format: "vis" (default) or "cytoscape"
func (h *Handlers) getVisualization(w http.ResponseWriter, r *http.Request, _ *BuildResult, a *GraphAnalyzer) {
	switch format := httputil.ParseQueryString(r, "format", "vis"); format {
	case "vis":
		httputil.WriteSuccess(w, a.GenerateVisualizationData())
	case "cytoscape":
		httputil.WriteSuccess(w, a.ToCytoscape())
	default:
		httputil.WriteBadRequest(w, fmt.Sprintf("unknown format %q", format))
	}
}
