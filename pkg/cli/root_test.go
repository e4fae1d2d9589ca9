package cli

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	assert.Equal(t, "depgraph", root.Name)
	assert.NotNil(t, root.Subcommands)
	assert.NotNil(t, root.Flags)

	expectedCommands := []string{
		"summary",
		"cycles",
		"links",
		"metrics",
		"impact",
		"path",
		"duplicates",
		"transitive",
		"order",
		"viz",
	}

	for _, cmdName := range expectedCommands {
		require.Contains(t, root.Subcommands, cmdName, "Expected subcommand %s to be registered", cmdName)
		assert.Equal(t, cmdName, root.Subcommands[cmdName].Name)
		assert.NotNil(t, root.Subcommands[cmdName].Run)
	}
	assert.Equal(t, len(expectedCommands), len(root.Subcommands))
}

func TestCommandUsage(t *testing.T) {
	var out bytes.Buffer
	root := newRootCommand(&out, &bytes.Buffer{})

	require.NoError(t, root.usage())

	output := out.String()
	assert.Contains(t, output, "Usage: depgraph <command> [flags]")
	assert.Contains(t, output, "Commands:")
	assert.Contains(t, output, "cycles")
	assert.Contains(t, output, "Detect dependency cycles")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("cycles")), bytes.Index(out.Bytes(), []byte("summary")), "commands are sorted")
}

func TestCommandExecute_NoArgs(t *testing.T) {
	var out bytes.Buffer
	root := newRootCommand(&out, &bytes.Buffer{})

	oldArgs := os.Args
	os.Args = []string{"depgraph"}
	defer func() { os.Args = oldArgs }()

	assert.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Usage: depgraph")
}

func TestCommandExecute_Help(t *testing.T) {
	for _, arg := range []string{"-h", "--help", "help"} {
		t.Run(arg, func(t *testing.T) {
			var out bytes.Buffer
			root := newRootCommand(&out, &bytes.Buffer{})

			assert.NoError(t, root.ExecuteArgs([]string{arg}))
			assert.Contains(t, out.String(), "Usage: depgraph")
		})
	}
}

func TestCommandExecute_Subcommand(t *testing.T) {
	root := newRootCommand(&bytes.Buffer{}, &bytes.Buffer{})

	var receivedArgs []string
	root.Subcommands["test"] = &Command{
		Name:        "test",
		Description: "Test command",
		Run: func(args []string) error {
			receivedArgs = args
			return nil
		},
	}

	require.NoError(t, root.ExecuteArgs([]string{"test", "arg1", "-flag"}))
	assert.Equal(t, []string{"arg1", "-flag"}, receivedArgs)
}

func TestCommandExecute_UnknownCommand(t *testing.T) {
	root := newRootCommand(&bytes.Buffer{}, &bytes.Buffer{})

	err := root.ExecuteArgs([]string{"nonexistent"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: nonexistent")
}
