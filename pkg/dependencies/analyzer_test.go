package dependencies

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCycles_Acyclic(t *testing.T) {
	f := newGraphFixture(t)
	a := f.node("r1", "a")
	b := f.node("r1", "b")
	c := f.node("r2", "c")
	d := f.node("r2", "d")
	f.chain(a, b, c)
	f.chain(a, d, c)

	assert.Empty(t, f.analyzer().DetectCycles())
}

func TestDetectCycles_SingleRepoTriangle(t *testing.T) {
	f := newGraphFixture(t)
	a := f.node("repo1", "a")
	b := f.node("repo1", "b")
	c := f.node("repo1", "c")
	f.chain(b, c, a, b)

	cycles := f.analyzer().DetectCycles()

	require.Len(t, cycles, 1)
	assert.Equal(t, []string{a, b, c}, cycles[0].Nodes, "rotated to the smallest id")
	assert.Equal(t, 3, cycles[0].Length)
	assert.Equal(t, []string{"repo1"}, cycles[0].Repositories)
	assert.Equal(t, SeverityLow, cycles[0].Severity)
}

func TestDetectCycles_CrossRepoPair(t *testing.T) {
	f := newGraphFixture(t)
	a := f.node("repo1", "a")
	b := f.node("repo2", "b")
	f.chain(a, b, a)

	cycles := f.analyzer().DetectCycles()

	require.Len(t, cycles, 1)
	assert.Equal(t, 2, cycles[0].Length)
	assert.Equal(t, []string{"repo1", "repo2"}, cycles[0].Repositories)
	assert.Equal(t, SeverityHigh, cycles[0].Severity)
}

func TestDetectCycles_Severity(t *testing.T) {
	tests := []struct {
		name   string
		length int
		repos  int
		want   CycleSeverity
	}{
		{"two nodes one repo", 2, 1, SeverityLow},
		{"five nodes one repo", 5, 1, SeverityLow},
		{"six nodes one repo", 6, 1, SeverityMedium},
		{"nine nodes one repo", 9, 1, SeverityMedium},
		{"two nodes two repos", 2, 2, SeverityHigh},
		{"eight nodes two repos", 8, 2, SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGraphFixture(t)
			ids := make([]string, 0, tt.length+1)
			for i := 0; i < tt.length; i++ {
				repo := "main"
				if tt.repos > 1 && i == tt.length-1 {
					repo = "other"
				}
				ids = append(ids, f.node(repo, fmt.Sprintf("n%d", i)))
			}
			f.chain(append(ids, ids[0])...)

			cycles := f.analyzer().DetectCycles()

			require.Len(t, cycles, 1)
			assert.Equal(t, tt.length, cycles[0].Length)
			assert.Equal(t, tt.want, cycles[0].Severity)
		})
	}
}

func TestDetectCycles_BackEdgeCreatesCycle(t *testing.T) {
	f := newGraphFixture(t)
	ids := []string{f.node("r1", "a"), f.node("r1", "b"), f.node("r2", "c"), f.node("r2", "d"), f.node("r3", "e")}
	f.chain(ids...)
	analyzer := f.analyzer()
	require.Empty(t, analyzer.DetectCycles())

	f.edge(ids[3], ids[1])

	cycles := analyzer.DetectCycles()
	require.NotEmpty(t, cycles)
	found := false
	for _, c := range cycles {
		if contains(c.Nodes, ids[3]) && contains(c.Nodes, ids[1]) {
			found = true
		}
	}
	assert.True(t, found, "a cycle contains both endpoints of the back-edge")
}

func TestDetectCycles_SharedNodeReportedPerCycle(t *testing.T) {
	f := newGraphFixture(t)
	hub := f.node("r1", "hub")
	left := f.node("r1", "left")
	right := f.node("r1", "right")
	f.chain(hub, left, hub)
	f.chain(hub, right, hub)

	cycles := f.analyzer().DetectCycles()

	require.Len(t, cycles, 2)
	for _, c := range cycles {
		assert.Contains(t, c.Nodes, hub)
	}
}

func TestDetectCycles_NoDuplicatesAcrossStarts(t *testing.T) {
	f := newGraphFixture(t)
	ids := []string{f.node("r1", "d"), f.node("r1", "c"), f.node("r1", "b"), f.node("r1", "a")}
	f.chain(append(ids, ids[0])...)

	cycles := f.analyzer().DetectCycles()

	require.Len(t, cycles, 1)
	assert.Equal(t, NodeID("r1", "a", "1.0.0"), cycles[0].Nodes[0])
}

func TestFindCrossRepoLinks(t *testing.T) {
	t.Run("single repository", func(t *testing.T) {
		f := newGraphFixture(t)
		f.chain(f.node("r1", "a"), f.node("r1", "b"))

		assert.Empty(t, f.analyzer().FindCrossRepoLinks())
	})

	t.Run("edges between a pair collapse", func(t *testing.T) {
		f := newGraphFixture(t)
		web := f.node("web", "web")
		admin := f.node("web", "admin")
		ui := f.node("ui", "ui")
		api := f.node("api", "api")
		f.edge(web, ui)
		f.edge(admin, ui)
		f.edge(web, api)
		f.edge(ui, web)

		links := f.analyzer().FindCrossRepoLinks()

		require.Len(t, links, 3)
		assert.Equal(t, "web", links[0].SourceRepo)
		assert.Equal(t, "ui", links[0].TargetRepo)
		assert.Equal(t, []Edge{
			{From: web, To: ui, Type: EdgeDirect},
			{From: admin, To: ui, Type: EdgeDirect},
		}, links[0].Dependencies)
		assert.Equal(t, "api", links[1].TargetRepo)
		assert.Equal(t, "ui", links[2].SourceRepo, "direction matters")
		assert.Equal(t, "web", links[2].TargetRepo)
	})
}

func TestCalculateRepositoryMetrics(t *testing.T) {
	f := newGraphFixture(t)
	a := f.node("r1", "a")
	b := f.node("r1", "b")
	c := f.node("r2", "c")
	f.chain(a, b, c)

	metrics := f.analyzer().CalculateRepositoryMetrics()

	require.Len(t, metrics, 2)
	assert.Equal(t, RepositoryMetrics{
		Repository:            "r1",
		DependencyCount:       2,
		CrossRepoDependencies: 1,
		Health:                RepositoryHealth{MaxDependencyDepth: 2, AverageDependencyDepth: 1.5},
	}, metrics[0])
	assert.Equal(t, RepositoryMetrics{Repository: "r2"}, metrics[1])
}

func TestCalculateRepositoryMetrics_CycleCapsDepth(t *testing.T) {
	f := newGraphFixture(t)
	x := f.node("r1", "x")
	y := f.node("r1", "y")
	f.chain(x, y, x)

	metrics := f.analyzer().CalculateRepositoryMetrics()

	require.Len(t, metrics, 1)
	assert.Equal(t, 2, metrics[0].Health.MaxDependencyDepth, "re-entering edge ends the branch")
	assert.Equal(t, 2.0, metrics[0].Health.AverageDependencyDepth)
}

func TestCalculateRepositoryMetrics_PathLocalVisitedSet(t *testing.T) {
	// root reaches shared through a short and a long branch. A global visited
	// set would stop at shared on the second branch and under-report.
	f := newGraphFixture(t)
	root := f.node("r1", "root")
	short := f.node("r1", "short")
	long1 := f.node("r1", "long1")
	long2 := f.node("r1", "long2")
	shared := f.node("r1", "shared")
	leaf := f.node("r1", "leaf")
	f.chain(root, short, shared, leaf)
	f.chain(root, long1, long2, shared)

	walker := newDepthWalker(f.analyzer().Graph())

	assert.Equal(t, 4, walker.longest(root))
	assert.Equal(t, 1, walker.longest(shared))
	assert.Equal(t, 0, walker.longest(leaf))
}

func TestDepthWalker_CycleDoesNotPoisonSiblings(t *testing.T) {
	f := newGraphFixture(t)
	a := f.node("r1", "a")
	b := f.node("r1", "b")
	c := f.node("r1", "c")
	d := f.node("r1", "d")
	e := f.node("r1", "e")
	// a -> b -> c -> a is a cycle; c also leads out to d -> e.
	f.chain(a, b, c, a)
	f.chain(c, d, e)

	walker := newDepthWalker(f.analyzer().Graph())

	assert.Equal(t, 4, walker.longest(a), "a b c d e")
	assert.Equal(t, 3, walker.longest(b), "b c d e ties with re-entering b")
	assert.Equal(t, 3, walker.longest(c), "c a b then re-enter c")
	assert.Equal(t, 1, walker.longest(d))
}

func TestCalculateRepositoryMetrics_DenseCycle(t *testing.T) {
	f := newGraphFixture(t)
	repos := make([]string, 14)
	for i := range repos {
		repos[i] = "r1"
	}
	f.clique(repos...)
	analyzer := f.analyzer()

	var metrics []RepositoryMetrics
	finishWithin(t, 5*time.Second, func() {
		metrics = analyzer.CalculateRepositoryMetrics()
	})

	require.Len(t, metrics, 1)
	assert.Equal(t, 14*13, metrics[0].DependencyCount)
	assert.Equal(t, 14, metrics[0].Health.MaxDependencyDepth, "every node then the edge back")
	assert.Equal(t, 14.0, metrics[0].Health.AverageDependencyDepth)
}

func TestCyclicNodes(t *testing.T) {
	f := newGraphFixture(t)
	a := f.node("r1", "a")
	b := f.node("r1", "b")
	c := f.node("r1", "c")
	d := f.node("r1", "d")
	f.chain(a, b, c, b)
	f.chain(c, d)

	cyclic := cyclicNodes(f.graph, func(n *Node) []string { return n.Dependencies })

	assert.Equal(t, map[string]bool{b: true, c: true}, cyclic)
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
