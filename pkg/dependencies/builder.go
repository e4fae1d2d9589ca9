package dependencies

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/depgraph/pkg/manifest"
	"github.com/platinummonkey/depgraph/pkg/observability"
	"github.com/platinummonkey/depgraph/pkg/workspace"
)

const (
	// DefaultMaxDepth bounds transitive walks when BuildOptions.MaxDepth is unset
	DefaultMaxDepth = 3

	// DefaultConcurrency bounds concurrent manifest fetches
	DefaultConcurrency = 8
)

// BuildOptions controls which dependencies become edges
type BuildOptions struct {
	IncludeDevDependencies        bool `json:"includeDevDependencies"`
	IncludePeerDependencies       bool `json:"includePeerDependencies"`
	IncludeTransitiveDependencies bool `json:"includeTransitiveDependencies"`
	MaxDepth                      int  `json:"maxDepth"`
	Concurrency                   int  `json:"concurrency,omitempty"`
}

// DefaultBuildOptions returns direct dependencies only, with default limits
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		MaxDepth:    DefaultMaxDepth,
		Concurrency: DefaultConcurrency,
	}
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

func (o BuildOptions) includes(kind manifest.Kind) bool {
	switch kind {
	case manifest.KindDirect:
		return true
	case manifest.KindDev:
		return o.IncludeDevDependencies
	case manifest.KindPeer:
		return o.IncludePeerDependencies
	}
	return false
}

// FetchFailure records a repository whose manifest could not be used
type FetchFailure struct {
	Repository string `json:"repository"`
	Error      string `json:"error"`
	Err        error  `json:"-"`
}

// BuildResult is the outcome of one build
type BuildResult struct {
	RunID    string           `json:"runId"`
	Graph    *DependencyGraph `json:"graph"`
	Failures []FetchFailure   `json:"failures"`
}

// Builder assembles dependency graphs from repository manifests
type Builder struct {
	source  manifest.Source
	log     *logrus.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewBuilder creates a builder reading manifests from source
func NewBuilder(source manifest.Source, log *logrus.Logger) *Builder {
	if log == nil {
		log = logrus.New()
	}
	return &Builder{
		source: source,
		log:    log,
		now:    time.Now,
	}
}

// SetMetrics enables Prometheus instrumentation of builds
func (b *Builder) SetMetrics(metrics *observability.Metrics) {
	b.metrics = metrics
}

// fetchResult is the per-repository buffer filled by one fetch goroutine
type fetchResult struct {
	manifest *manifest.Manifest
	err      error
	done     bool
}

// repoManifest is a successfully fetched repository with its usable dependencies
type repoManifest struct {
	repo     workspace.Repository
	name     string
	manifest *manifest.Manifest
	deps     []manifest.Dependency
	// nodes are every node of the repository's package, in creation order
	nodes   []*Node
	targets []resolvedDep
}

// resolvedDep is a dependency resolved to a node of another tracked repository
type resolvedDep struct {
	node  *Node
	owner *repoManifest
	kind  manifest.Kind
}

func (rm *repoManifest) addNode(graph *DependencyGraph, name, version string) *Node {
	node := graph.AddNode(rm.repo.FullName(), name, version, rm.manifest.PackageManager)
	if !slices.Contains(rm.nodes, node) {
		rm.nodes = append(rm.nodes, node)
	}
	return node
}

// BuildDependencyGraph fetches every repository's manifest concurrently and
// merges the results into one graph. Fetch failures are recorded in the
// result and never abort the build.
func (b *Builder) BuildDependencyGraph(ctx context.Context, workspaceID string, repos []workspace.Repository, opts BuildOptions) *BuildResult {
	opts = opts.withDefaults()
	start := b.now()

	ctx, span := observability.Tracer().Start(ctx, "dependencies.BuildDependencyGraph",
		trace.WithAttributes(
			attribute.String("workspace.id", workspaceID),
			attribute.Int("workspace.repositories", len(repos)),
		))
	defer span.End()

	result := &BuildResult{
		RunID:    uuid.NewString(),
		Graph:    NewDependencyGraph(workspaceID, start),
		Failures: make([]FetchFailure, 0),
	}
	log := b.log.WithFields(logrus.Fields{
		"workspace": workspaceID,
		"run_id":    result.RunID,
	})

	fetched := b.fetchAll(ctx, repos, opts.Concurrency)

	usable := make([]*repoManifest, 0, len(repos))
	for i, repo := range repos {
		res := fetched[i]
		err := res.err
		switch {
		case !res.done:
			err = ctx.Err()
			if err == nil {
				err = context.Canceled
			}
		case err == nil && res.manifest == nil:
			err = manifest.ErrManifestNotFound
		}
		if err != nil {
			log.WithError(err).Warnf("Skipping repository %s", repo.FullName())
			result.Failures = append(result.Failures, FetchFailure{
				Repository: repo.FullName(),
				Error:      err.Error(),
				Err:        err,
			})
			continue
		}
		usable = append(usable, b.validate(log, repo, res.manifest))
	}

	b.merge(log, result.Graph, usable, opts)

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build cancelled")
	}
	span.SetAttributes(
		attribute.Int("graph.nodes", result.Graph.Metadata.TotalNodes),
		attribute.Int("graph.edges", result.Graph.Metadata.TotalEdges),
		attribute.Int("graph.failures", len(result.Failures)),
	)
	b.record(workspaceID, result, len(repos), start)

	log.WithFields(logrus.Fields{
		"nodes":            result.Graph.Metadata.TotalNodes,
		"edges":            result.Graph.Metadata.TotalEdges,
		"cross_repo_links": result.Graph.Metadata.CrossRepoLinks,
		"failures":         len(result.Failures),
	}).Info("Built dependency graph")

	return result
}

// fetchAll runs one fetch per repository with at most limit in flight.
// Each goroutine writes only its own slot.
func (b *Builder) fetchAll(ctx context.Context, repos []workspace.Repository, limit int) []fetchResult {
	results := make([]fetchResult, len(repos))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i := range repos {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return nil
			}
			m, err := b.fetch(egCtx, repos[i])
			results[i] = fetchResult{manifest: m, err: err, done: true}
			return nil
		})
	}
	// Goroutines report failures through their slot, so Wait never errors.
	_ = eg.Wait()

	return results
}

func (b *Builder) fetch(ctx context.Context, repo workspace.Repository) (*manifest.Manifest, error) {
	ctx, span := observability.Tracer().Start(ctx, "manifest.Fetch",
		trace.WithAttributes(attribute.String("repository", repo.FullName())))
	defer span.End()

	start := time.Now()
	m, err := b.source.Fetch(ctx, repo)

	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(err, manifest.ErrManifestNotFound) {
			status = "not_found"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if b.metrics != nil {
		b.metrics.ManifestFetchesTotal.WithLabelValues(status).Inc()
		b.metrics.ManifestFetchDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		return nil, fmt.Errorf("fetch manifest of %s: %w", repo.FullName(), err)
	}
	return m, nil
}

// validate drops dependencies with an unknown kind or no name
func (b *Builder) validate(log *logrus.Entry, repo workspace.Repository, m *manifest.Manifest) *repoManifest {
	rm := &repoManifest{
		repo:     repo,
		name:     m.Name,
		manifest: m,
		deps:     make([]manifest.Dependency, 0, len(m.Dependencies)),
	}
	if rm.name == "" {
		rm.name = repo.Name
	}

	for _, dep := range m.Dependencies {
		if dep.Name == "" {
			log.Warnf("Ignoring unnamed dependency in %s", repo.FullName())
			continue
		}
		if !dep.Kind.Valid() {
			log.Warnf("Ignoring dependency %s of %s with unknown kind %q", dep.Name, repo.FullName(), dep.Kind)
			continue
		}
		rm.deps = append(rm.deps, dep)
	}
	return rm
}

// merge adds nodes and edges for every usable repository. It runs on a
// single goroutine after all fetches have finished.
//
// A package gets one node per version string it is known by: the owner's
// manifest version and each version a dependent declares. Every one of
// those nodes carries the owner's dependencies. An owner manifest without a
// version only gets a node of its own when nothing depends on it.
func (b *Builder) merge(log *logrus.Entry, graph *DependencyGraph, repos []*repoManifest, opts BuildOptions) {
	owners := make(map[string]*repoManifest)
	claim := func(pkg string, rm *repoManifest) {
		if prev, ok := owners[pkg]; ok && prev != rm {
			log.Warnf("Package %s is declared by both %s and %s; using %s",
				pkg, prev.repo.FullName(), rm.repo.FullName(), prev.repo.FullName())
			return
		}
		owners[pkg] = rm
	}
	for _, rm := range repos {
		claim(rm.name, rm)
		if rm.manifest.Name == "" && rm.repo.FullName() != rm.repo.Name {
			claim(rm.repo.FullName(), rm)
		}
	}

	for _, rm := range repos {
		if rm.manifest.Version != "" {
			rm.addNode(graph, rm.name, rm.manifest.Version)
		}
	}

	// Filtered, external and self dependencies resolve to nothing.
	for _, rm := range repos {
		for _, dep := range rm.deps {
			if !opts.includes(dep.Kind) {
				continue
			}
			owner, ok := owners[dep.Name]
			if !ok || owner == rm {
				continue
			}
			rm.targets = append(rm.targets, resolvedDep{
				node:  owner.addNode(graph, dep.Name, dep.Version),
				owner: owner,
				kind:  dep.Kind,
			})
		}
	}

	for _, rm := range repos {
		if len(rm.nodes) == 0 {
			rm.addNode(graph, rm.name, "")
		}
	}

	for _, rm := range repos {
		for _, src := range rm.nodes {
			for _, t := range rm.targets {
				b.addEdge(log, graph, src.ID, t.node.ID, EdgeType(t.kind))
			}
		}
	}

	if !opts.IncludeTransitiveDependencies {
		return
	}

	for _, origin := range repos {
		visited := map[*repoManifest]bool{origin: true}
		frontier := make([]*repoManifest, 0)
		for _, t := range origin.targets {
			if !visited[t.owner] {
				visited[t.owner] = true
				frontier = append(frontier, t.owner)
			}
		}

		for hop := 2; hop <= opts.MaxDepth && len(frontier) > 0; hop++ {
			next := make([]*repoManifest, 0)
			for _, rm := range frontier {
				for _, t := range rm.targets {
					// A chain back into the origin's package is not a dependency of it.
					if t.owner == origin {
						continue
					}
					for _, src := range origin.nodes {
						b.addEdge(log, graph, src.ID, t.node.ID, EdgeTransitive)
					}
					if !visited[t.owner] {
						visited[t.owner] = true
						next = append(next, t.owner)
					}
				}
			}
			frontier = next
		}
	}
}

func (b *Builder) addEdge(log *logrus.Entry, graph *DependencyGraph, from, to string, edgeType EdgeType) {
	if _, err := graph.AddEdge(from, to, edgeType); err != nil {
		// Both endpoints are added before any edge, so this is a builder bug.
		log.WithError(err).Error("Dropping edge with a missing endpoint")
	}
}

func (b *Builder) record(workspaceID string, result *BuildResult, repos int, start time.Time) {
	if b.metrics == nil {
		return
	}

	status := "success"
	switch {
	case repos > 0 && len(result.Failures) == repos:
		status = "failed"
	case len(result.Failures) > 0:
		status = "partial"
	}
	b.metrics.GraphBuildsTotal.WithLabelValues(status).Inc()
	b.metrics.GraphBuildDuration.Observe(b.now().Sub(start).Seconds())

	meta := result.Graph.Metadata
	b.metrics.GraphNodes.WithLabelValues(workspaceID).Set(float64(meta.TotalNodes))
	b.metrics.GraphEdges.WithLabelValues(workspaceID).Set(float64(meta.TotalEdges))
	b.metrics.GraphCrossRepoLinks.WithLabelValues(workspaceID).Set(float64(meta.CrossRepoLinks))
}
