package dependencies

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// graphFixture builds graphs by hand for analyzer tests
type graphFixture struct {
	t     *testing.T
	graph *DependencyGraph
}

func newGraphFixture(t *testing.T) *graphFixture {
	return &graphFixture{
		t:     t,
		graph: NewDependencyGraph("ws", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
	}
}

// node adds name@1.0.0 owned by repo and returns its id
func (f *graphFixture) node(repo, name string) string {
	return f.graph.AddNode(repo, name, "1.0.0", "npm").ID
}

func (f *graphFixture) versioned(repo, name, version string) string {
	return f.graph.AddNode(repo, name, version, "npm").ID
}

func (f *graphFixture) edge(from, to string) {
	f.typedEdge(from, to, EdgeDirect)
}

func (f *graphFixture) typedEdge(from, to string, edgeType EdgeType) {
	added, err := f.graph.AddEdge(from, to, edgeType)
	require.NoError(f.t, err)
	require.True(f.t, added, "edge %s -> %s already exists", from, to)
}

// chain links ids[0] -> ids[1] -> ... -> ids[n-1]
func (f *graphFixture) chain(ids ...string) {
	for i := 0; i+1 < len(ids); i++ {
		f.edge(ids[i], ids[i+1])
	}
}

// clique adds one node per repository entry and links every node to every
// other one
func (f *graphFixture) clique(repos ...string) []string {
	ids := make([]string, 0, len(repos))
	for i, repo := range repos {
		ids = append(ids, f.node(repo, fmt.Sprintf("n%02d", i)))
	}
	for _, from := range ids {
		for _, to := range ids {
			if from != to {
				f.edge(from, to)
			}
		}
	}
	return ids
}

// finishWithin fails the test when fn runs longer than limit
func finishWithin(t *testing.T, limit time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(limit):
		t.Fatalf("did not finish within %s", limit)
	}
}

func (f *graphFixture) analyzer() *GraphAnalyzer {
	require.NoError(f.t, f.graph.Validate())
	return NewGraphAnalyzer(f.graph)
}
