package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/depgraph/pkg/dependencies"
	"github.com/platinummonkey/depgraph/pkg/manifest"
	"github.com/platinummonkey/depgraph/pkg/observability"
	"github.com/platinummonkey/depgraph/pkg/workspace"
)

// graphFlags are the flags shared by every analysis command
type graphFlags struct {
	workspaceFile string
	workspaceID   string
	manifestFile  string
	checkoutRoot  string
	githubURL     string

	dev         bool
	peer        bool
	transitive  bool
	depth       int
	concurrency int

	json     bool
	logLevel string
}

func (g *graphFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&g.workspaceFile, "workspaces", "workspaces.yaml", "Workspace definition file")
	fs.StringVar(&g.workspaceID, "workspace", "", "Workspace id (optional when the file defines one workspace)")
	fs.StringVar(&g.manifestFile, "manifests", "", "Read manifests from this YAML file")
	fs.StringVar(&g.checkoutRoot, "root", "", "Read manifests from checkouts under <root>/<owner>/<name>")
	fs.StringVar(&g.githubURL, "github-url", "", "GitHub Enterprise API URL (default: github.com)")
	fs.BoolVar(&g.dev, "dev", false, "Include dev dependencies")
	fs.BoolVar(&g.peer, "peer", false, "Include peer dependencies")
	fs.BoolVar(&g.transitive, "transitive", false, "Add transitive edges")
	fs.IntVar(&g.depth, "depth", dependencies.DefaultMaxDepth, "Maximum depth of transitive edges")
	fs.IntVar(&g.concurrency, "concurrency", dependencies.DefaultConcurrency, "Concurrent manifest fetches")
	fs.BoolVar(&g.json, "json", false, "Output in JSON format")
	fs.StringVar(&g.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
}

func (g *graphFlags) options() dependencies.BuildOptions {
	return dependencies.BuildOptions{
		IncludeDevDependencies:        g.dev,
		IncludePeerDependencies:       g.peer,
		IncludeTransitiveDependencies: g.transitive,
		MaxDepth:                      g.depth,
		Concurrency:                   g.concurrency,
	}
}

func (g *graphFlags) logger() *logrus.Logger {
	log := observability.NewLogger(observability.ParseLogLevel(g.logLevel), os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return log
}

// source picks the manifest file, then the checkout root, then GitHub
func (g *graphFlags) source() (manifest.Source, error) {
	switch {
	case g.manifestFile != "":
		static, err := manifest.LoadStaticFile(g.manifestFile)
		if err != nil {
			return nil, err
		}
		return static, nil
	case g.checkoutRoot != "":
		return manifest.NewFilesystemSource(g.checkoutRoot), nil
	default:
		gh, err := manifest.NewGitHubSource(manifest.GitHubConfig{
			Token:   os.Getenv("DEPGRAPH_GITHUB_TOKEN"),
			BaseURL: g.githubURL,
		})
		if err != nil {
			return nil, err
		}
		return gh, nil
	}
}

func (g *graphFlags) loadWorkspace(ctx context.Context, log *logrus.Logger) (*workspace.Workspace, error) {
	store, err := workspace.NewFileStore(g.workspaceFile, log)
	if err != nil {
		return nil, err
	}

	id := g.workspaceID
	if id == "" {
		ids, err := store.ListWorkspaceIDs(ctx)
		if err != nil {
			return nil, err
		}
		if len(ids) != 1 {
			return nil, fmt.Errorf("-workspace is required; %s defines: %s", g.workspaceFile, strings.Join(ids, ", "))
		}
		id = ids[0]
	}
	return store.GetWorkspace(ctx, id)
}

// analysis is one loaded workspace ready to be analyzed
type analysis struct {
	result   *dependencies.BuildResult
	analyzer *dependencies.GraphAnalyzer
	json     bool
	out      io.Writer
}

// analysisCommand builds a command that loads a workspace graph and hands it
// to run. extra registers command specific flags. Skipped repositories are
// reported on errOut so out stays machine readable.
func analysisCommand(out, errOut io.Writer, name, description string, extra func(fs *flag.FlagSet), run func(a *analysis) error) *Command {
	cmd := &Command{
		Name:        name,
		Description: description,
		Flags:       flag.NewFlagSet(name, flag.ContinueOnError),
		out:         out,
	}

	var g graphFlags
	g.register(cmd.Flags)
	if extra != nil {
		extra(cmd.Flags)
	}
	cmd.Flags.SetOutput(errOut)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if g.depth < 1 {
			return fmt.Errorf("-depth must be at least 1")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		log := g.logger()
		ws, err := g.loadWorkspace(ctx, log)
		if err != nil {
			return err
		}
		source, err := g.source()
		if err != nil {
			return err
		}

		result := dependencies.NewBuilder(source, log).BuildDependencyGraph(ctx, ws.ID, ws.Repositories, g.options())
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(result.Failures) > 0 {
			fmt.Fprintf(errOut, "warning: skipped %d repositories\n", len(result.Failures))
			for _, f := range result.Failures {
				fmt.Fprintf(errOut, "  %s: %s\n", f.Repository, f.Error)
			}
		}

		return run(&analysis{
			result:   result,
			analyzer: dependencies.NewGraphAnalyzer(result.Graph),
			json:     g.json,
			out:      out,
		})
	}
	return cmd
}

func (a *analysis) writeJSON(v interface{}) error {
	encoder := json.NewEncoder(a.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (a *analysis) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}
