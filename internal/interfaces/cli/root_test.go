package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and captured streams.
func executeCommand(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--log-level", "error", "--no-color"}, args...))
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "fluoric", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
	assert.True(t, cmd.SilenceErrors)

	want := map[string]bool{"predict": false, "features": false, "models": false, "serve": false, "version": false}
	for _, sub := range cmd.Commands() {
		name := strings.Fields(sub.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		assert.True(t, found, "missing subcommand %s", name)
	}
}

func TestNewRootCommand_PersistentFlags(t *testing.T) {
	cmd := NewRootCommand()
	pf := cmd.PersistentFlags()

	for _, name := range []string{"config", "log-level", "output", "verbose", "no-color", "timeout"} {
		assert.NotNil(t, pf.Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "text", pf.Lookup("output").DefValue)
	assert.Equal(t, "o", pf.Lookup("output").Shorthand)
	assert.Equal(t, "c", pf.Lookup("config").Shorthand)
}

func TestRoot_RejectsUnknownOutputFormat(t *testing.T) {
	_, _, err := executeCommand(t, "", "-o", "xml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestRoot_ExplicitConfigMissing(t *testing.T) {
	_, _, err := executeCommand(t, "", "--config", "/nonexistent/fluoric.yaml", "version")
	assert.Error(t, err)
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := NewRootCommand()
	_, err := GetCLIContext(cmd)
	assert.Error(t, err)

	cmd.SetContext(context.Background())
	_, err = GetCLIContext(cmd)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := executeCommand(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fluoric "+Version)

	out, _, err = executeCommand(t, "", "version", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "`+Version+`"`)
}

func TestPrintError(t *testing.T) {
	cmd := NewRootCommand()
	var errOut bytes.Buffer
	cmd.SetErr(&errOut)

	_, _, err := executeCommand(t, "SMILES\nC1CC\n", "predict", "logp")
	require.Error(t, err)
	PrintError(cmd, err)
	assert.Contains(t, errOut.String(), "Inappropriate SMILES format: C1CC")

	errOut.Reset()
	PrintError(cmd, nil)
	assert.Empty(t, errOut.String())
}
