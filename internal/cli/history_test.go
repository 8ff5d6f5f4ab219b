package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracegate/internal/store"
)

func seedArchive(t *testing.T) (dbPath string, batchID string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "archive.db")

	_, err := execRoot(t, "analyze",
		writeJSON(t, filepath.Join(dir, "first.json"), cleanRun("r0")),
		"--db", dbPath, "--label", "first")
	require.NoError(t, err)

	out, err := execRoot(t, "analyze",
		writeJSON(t, filepath.Join(dir, "second.json"), []any{timeoutRun("r1"), cleanRun("r2")}),
		"--db", dbPath, "--label", "second", "--format", "json")
	require.NoError(t, err)
	_, data := decodeResponse(t, out)
	return dbPath, data["batch_id"].(string)
}

func TestHistory_ListsNewestFirst(t *testing.T) {
	dbPath, _ := seedArchive(t)

	out, err := execRoot(t, "history", "--db", dbPath, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   []store.BatchInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "second", resp.Data[0].Label)
	assert.Equal(t, 4, resp.Data[0].Findings)
	assert.Equal(t, "first", resp.Data[1].Label)
	assert.Equal(t, 0, resp.Data[1].Findings)
}

func TestHistory_Limit(t *testing.T) {
	dbPath, _ := seedArchive(t)

	out, err := execRoot(t, "history", "--db", dbPath, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "second")
	assert.NotContains(t, out, "first")
}

func TestHistory_Batch(t *testing.T) {
	dbPath, batchID := seedArchive(t)

	out, err := execRoot(t, "history", "--db", dbPath, "--batch", batchID, "--format", "json")
	require.NoError(t, err)

	_, data := decodeResponse(t, out)
	assert.Equal(t, batchID, data["id"])
	assert.Len(t, data["reports"], 2)
	counts := data["category_counts"].(map[string]any)
	assert.Equal(t, float64(1), counts["recovery_failure_after_error"])

	text, err := execRoot(t, "history", "--db", dbPath, "--batch", batchID)
	require.NoError(t, err)
	assert.Contains(t, text, "Batch "+batchID)
	assert.Contains(t, text, "r1")
	assert.Contains(t, text, "timeout_budget_miss")
}

func TestHistory_BatchNotFound(t *testing.T) {
	dbPath, _ := seedArchive(t)

	out, err := execRoot(t, "history", "--db", dbPath, "--batch", "missing", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp, _ := decodeResponse(t, out)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestHistory_Gates(t *testing.T) {
	fx := newGateFixture(t)
	dbPath := filepath.Join(fx.dir, "archive.db")
	_, err := execRoot(t, "gate",
		"--baseline", fx.baseline,
		"--candidate", fx.candidate,
		"--no-history",
		"--db", dbPath)
	require.NoError(t, err)

	out, err := execRoot(t, "history", "--db", dbPath, "--gates")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "80.00%")
}

func TestHistory_MissingDatabase(t *testing.T) {
	out, err := execRoot(t, "history", "--format", "json")
	require.Error(t, err)
	resp, _ := decodeResponse(t, out)
	assert.Equal(t, ErrCodeMissingInput, resp.Error.Code)

	out, err = execRoot(t, "history", "--db", filepath.Join(t.TempDir(), "nope.db"), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp, _ = decodeResponse(t, out)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestHistory_EmptyArchive(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execRoot(t, "history", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No batches archived.")
}
