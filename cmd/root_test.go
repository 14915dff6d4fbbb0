package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"laus", "qcew", "oews", "ces", "regions", "series", "reference", "run", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "blsgeo", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("metrics-file"))
}

func TestStatisticCommands_ParamFlags(t *testing.T) {
	tests := map[string][]string{
		"laus": {"measure"},
		"qcew": {"datatype", "size", "ownership", "industry"},
		"oews": {"industry", "occupation", "datatype"},
		"ces":  {"industry", "datatype"},
	}
	for name, params := range tests {
		t.Run(name, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{name})
			require.NoError(t, err)
			for _, flag := range append(params, "boundary", "predicate", "buffer", "full-series", "output", "format") {
				assert.NotNil(t, cmd.Flags().Lookup(flag), "%s should have --%s", name, flag)
			}
		})
	}
}

func TestRunCommand_Flags(t *testing.T) {
	flag := runCmd.Flags().Lookup("job")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestReferenceCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range referenceCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["download"])
	assert.True(t, names["load"])
}
