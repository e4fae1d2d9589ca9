package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
	out         io.Writer
}

// NewRootCommand creates the root command writing results to stdout and
// warnings to stderr
func NewRootCommand() *Command {
	return newRootCommand(os.Stdout, os.Stderr)
}

func newRootCommand(out, errOut io.Writer) *Command {
	root := &Command{
		Name:        "depgraph",
		Description: "depgraph - Cross-repository dependency graph analysis",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("depgraph", flag.ContinueOnError),
		out:         out,
	}

	for _, cmd := range []*Command{
		newSummaryCommand(out, errOut),
		newCyclesCommand(out, errOut),
		newLinksCommand(out, errOut),
		newMetricsCommand(out, errOut),
		newImpactCommand(out, errOut),
		newPathCommand(out, errOut),
		newDuplicatesCommand(out, errOut),
		newTransitiveCommand(out, errOut),
		newOrderCommand(out, errOut),
		newVizCommand(out, errOut),
	} {
		root.Subcommands[cmd.Name] = cmd
	}

	return root
}

// Execute runs the command with the process arguments
func (c *Command) Execute() error {
	return c.ExecuteArgs(os.Args[1:])
}

// ExecuteArgs runs the command with args
func (c *Command) ExecuteArgs(args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(c.out, "Usage: %s <command> [flags]\n\n", c.Name)
	fmt.Fprintf(c.out, "Commands:\n")
	for _, name := range names {
		fmt.Fprintf(c.out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	fmt.Fprintf(c.out, "\nRun '%s <command> -h' for the flags of a command.\n", c.Name)
	return nil
}
