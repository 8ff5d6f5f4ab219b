package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tracegate/internal/testutil"
	"github.com/roach88/tracegate/internal/trace"
)

// timeoutRun retries pytest three times into a timeout.
func timeoutRun(id string) trace.Object {
	b := testutil.NewRun(id)
	return testutil.TraceObject(
		b.RunStart(),
		b.ExecFail("pytest -q", "timeout"),
		b.ExecFail("pytest -q", "timeout"),
		b.ExecFail("pytest -q", "timeout"),
		b.RunEnd(),
	)
}

// cleanRun edits a source file and verifies it.
func cleanRun(id string) trace.Object {
	b := testutil.NewRun(id)
	return testutil.TraceObject(
		b.RunStart(),
		b.ToolStart("write_file", testutil.Path("app.py")),
		b.ToolSuccess("write_file", testutil.Path("app.py")),
		b.Exec("pytest -q"),
		b.RunEnd(),
	)
}

// verboseRun emits ten raw events with two repeated pytest starts.
func verboseRun(id string) trace.Object {
	b := testutil.NewRun(id)
	return testutil.TraceObject(
		b.RunStart(),
		b.Exec("pytest"),
		b.Exec("pytest"),
		b.Exec("pytest"),
		b.Exec("pytest"),
		b.RunEnd(),
	)
}

// compactRun emits two summary records.
func compactRun(id, status string) trace.Object {
	b := testutil.NewRun(id)
	return testutil.TraceObject(
		b.Summary("execute", testutil.Cmd("pytest"), "success"),
		b.Summary("execute", testutil.Cmd("pytest"), status),
	)
}

func writeJSON(t *testing.T, path string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func writeJSONL(t *testing.T, path string, objs ...trace.Object) string {
	t.Helper()
	var buf bytes.Buffer
	for _, obj := range objs {
		data, err := json.Marshal(obj)
		require.NoError(t, err)
		buf.Write(data)
		buf.WriteByte('\n')
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

// execRoot runs the full root command and returns stdout and the error.
func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeResponse(t *testing.T, out string) (CLIResponse, map[string]any) {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	var data map[string]any
	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		_ = json.Unmarshal(raw.Data, &data)
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}, data
}
