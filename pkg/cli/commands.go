package cli

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/platinummonkey/depgraph/pkg/dependencies"
)

func newSummaryCommand(out, errOut io.Writer) *Command {
	return analysisCommand(out, errOut, "summary", "Summarize a workspace graph", nil, func(a *analysis) error {
		summary := a.analyzer.GenerateSummary()
		if a.json {
			return a.writeJSON(summary)
		}

		a.printf("Repositories:     %d\n", summary.TotalRepositories)
		a.printf("Dependencies:     %d\n", summary.TotalDependencies)
		a.printf("Cross-repo links: %d\n", summary.CrossRepoLinks)
		printRanked(a, "Most depended on", summary.MostDependedOn)
		printRanked(a, "Most dependent", summary.MostDependent)
		return nil
	})
}

func printRanked(a *analysis, title string, ranked []dependencies.RankedNode) {
	if len(ranked) == 0 {
		return
	}
	a.printf("\n%s:\n", title)
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, r := range ranked {
		fmt.Fprintf(w, "  %d\t%s\t%s\n", r.Count, r.Name, r.Repository)
	}
	w.Flush()
}

var severityRank = map[dependencies.CycleSeverity]int{
	dependencies.SeverityLow:    1,
	dependencies.SeverityMedium: 2,
	dependencies.SeverityHigh:   3,
}

func newCyclesCommand(out, errOut io.Writer) *Command {
	var failOn string
	return analysisCommand(out, errOut, "cycles", "Detect dependency cycles",
		func(fs *flag.FlagSet) {
			fs.StringVar(&failOn, "fail-on", "", "Exit with an error when a cycle of at least this severity exists: low, medium, high")
		},
		func(a *analysis) error {
			threshold := 0
			if failOn != "" {
				var ok bool
				if threshold, ok = severityRank[dependencies.CycleSeverity(failOn)]; !ok {
					return fmt.Errorf("invalid -fail-on severity: %s", failOn)
				}
			}

			cycles := a.analyzer.DetectCycles()
			if a.json {
				if err := a.writeJSON(cycles); err != nil {
					return err
				}
			} else if len(cycles) == 0 {
				a.printf("No dependency cycles found\n")
			} else {
				a.printf("Found %d dependency cycles:\n", len(cycles))
				for _, c := range cycles {
					a.printf("  [%s] %s -> %s\n", c.Severity, strings.Join(c.Nodes, " -> "), c.Nodes[0])
				}
			}

			if threshold == 0 {
				return nil
			}
			failing := 0
			for _, c := range cycles {
				if severityRank[c.Severity] >= threshold {
					failing++
				}
			}
			if failing > 0 {
				return fmt.Errorf("%d cycles of severity %s or higher", failing, failOn)
			}
			return nil
		})
}

func newLinksCommand(out, errOut io.Writer) *Command {
	return analysisCommand(out, errOut, "links", "List cross-repository links", nil, func(a *analysis) error {
		links := a.analyzer.FindCrossRepoLinks()
		if a.json {
			return a.writeJSON(links)
		}

		if len(links) == 0 {
			a.printf("No cross-repository links\n")
			return nil
		}
		for _, l := range links {
			a.printf("%s -> %s (%d)\n", l.SourceRepo, l.TargetRepo, len(l.Dependencies))
			for _, e := range l.Dependencies {
				a.printf("  %s -> %s [%s]\n", e.From, e.To, e.Type)
			}
		}
		return nil
	})
}

func newMetricsCommand(out, errOut io.Writer) *Command {
	return analysisCommand(out, errOut, "metrics", "Show per-repository dependency metrics", nil, func(a *analysis) error {
		metrics := a.analyzer.CalculateRepositoryMetrics()
		if a.json {
			return a.writeJSON(metrics)
		}

		w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "REPOSITORY\tDEPENDENCIES\tCROSS-REPO\tMAX DEPTH\tAVG DEPTH")
		for _, m := range metrics {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.2f\n",
				m.Repository,
				m.DependencyCount,
				m.CrossRepoDependencies,
				m.Health.MaxDependencyDepth,
				m.Health.AverageDependencyDepth,
			)
		}
		return w.Flush()
	})
}

func newImpactCommand(out, errOut io.Writer) *Command {
	var node string
	return analysisCommand(out, errOut, "impact", "Show what a change to a node affects",
		func(fs *flag.FlagSet) {
			fs.StringVar(&node, "node", "", "Node id (repository:name@version)")
		},
		func(a *analysis) error {
			if node == "" {
				return fmt.Errorf("-node is required")
			}
			impact, ok := a.analyzer.AnalyzeImpact(node)
			if !ok {
				return fmt.Errorf("node not found: %s", node)
			}
			if a.json {
				return a.writeJSON(impact)
			}

			a.printf("Impact score: %d\n", impact.ImpactScore)
			a.printf("Direct dependents (%d):\n", len(impact.DirectImpact))
			for _, id := range impact.DirectImpact {
				a.printf("  %s\n", id)
			}
			a.printf("Transitive dependents (%d):\n", len(impact.TransitiveImpact))
			for _, id := range impact.TransitiveImpact {
				a.printf("  %s\n", id)
			}
			a.printf("Affected repositories: %s\n", strings.Join(impact.AffectedRepositories, ", "))
			if len(impact.CriticalPath) > 0 {
				a.printf("Critical path: %s\n", strings.Join(impact.CriticalPath, " <- "))
			}
			return nil
		})
}

func newPathCommand(out, errOut io.Writer) *Command {
	var from, to string
	return analysisCommand(out, errOut, "path", "Find the shortest dependency path between two nodes",
		func(fs *flag.FlagSet) {
			fs.StringVar(&from, "from", "", "Dependent node id")
			fs.StringVar(&to, "to", "", "Dependency node id")
		},
		func(a *analysis) error {
			if from == "" || to == "" {
				return fmt.Errorf("-from and -to are required")
			}
			path, ok := a.analyzer.FindShortestPath(from, to)
			if !ok {
				return fmt.Errorf("no path from %s to %s", from, to)
			}
			if a.json {
				return a.writeJSON(path)
			}
			a.printf("%s\n", strings.Join(path, " -> "))
			return nil
		})
}

func newDuplicatesCommand(out, errOut io.Writer) *Command {
	return analysisCommand(out, errOut, "duplicates", "List packages declared at several versions", nil, func(a *analysis) error {
		duplicates := a.analyzer.FindDuplicateDependencies()
		if a.json {
			return a.writeJSON(duplicates)
		}

		if len(duplicates) == 0 {
			a.printf("No duplicate dependencies\n")
			return nil
		}
		names := make([]string, 0, len(duplicates))
		for name := range duplicates {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			entries := duplicates[name]
			a.printf("%s (latest %s)\n", name, dependencies.LatestVersion(entries))
			for _, e := range entries {
				a.printf("  %s in %s\n", e.Version, e.Repository)
			}
		}
		return nil
	})
}

func newTransitiveCommand(out, errOut io.Writer) *Command {
	var node string
	return analysisCommand(out, errOut, "transitive", "List everything a node depends on",
		func(fs *flag.FlagSet) {
			fs.StringVar(&node, "node", "", "Node id (repository:name@version)")
		},
		func(a *analysis) error {
			if node == "" {
				return fmt.Errorf("-node is required")
			}
			deps, ok := a.analyzer.GetTransitiveDependencies(node)
			if !ok {
				return fmt.Errorf("node not found: %s", node)
			}
			if a.json {
				return a.writeJSON(deps)
			}
			for _, id := range deps {
				a.printf("%s\n", id)
			}
			return nil
		})
}

func newOrderCommand(out, errOut io.Writer) *Command {
	return analysisCommand(out, errOut, "order", "Print nodes with dependencies first", nil, func(a *analysis) error {
		order, err := a.analyzer.TopologicalOrder()
		if err != nil {
			return err
		}
		if a.json {
			return a.writeJSON(order)
		}
		for i, id := range order {
			a.printf("%d. %s\n", i+1, id)
		}
		return nil
	})
}

func newVizCommand(out, errOut io.Writer) *Command {
	var format string
	return analysisCommand(out, errOut, "viz", "Export the graph for visualization",
		func(fs *flag.FlagSet) {
			fs.StringVar(&format, "format", "vis", "Output format: vis, cytoscape")
		},
		func(a *analysis) error {
			switch format {
			case "vis":
				return a.writeJSON(a.analyzer.GenerateVisualizationData())
			case "cytoscape":
				return a.writeJSON(a.analyzer.ToCytoscape())
			default:
				return fmt.Errorf("unknown format: %s", format)
			}
		})
}
