package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk/backend/internal/storage/sqlite"
)

func seedDB(t *testing.T, questions ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queries.db")
	db, err := sqlite.NewClient(path, 1000)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.InitSchema())
	for _, q := range questions {
		_, err := db.InsertEscalation(context.Background(), q, "user@example.com")
		require.NoError(t, err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, dbPath, outputJSON = "", "", false
	resolveText, resolveFlag = "", ""
	evalCorpusPath, evalThreshold, evalShowMisses = "", -1, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPendingAndResolve(t *testing.T) {
	db := seedDB(t, "Where is my parcel?", "Can I change my plan?")

	out, err := run(t, "pending", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Where is my parcel?")
	assert.Contains(t, out, "Can I change my plan?")

	out, err = run(t, "resolve", "1", "--db", db, "--resolution", "Shipped yesterday", "--flag", "shipping")
	require.NoError(t, err)
	assert.Contains(t, out, "resolved")
	assert.Contains(t, out, "Shipped yesterday")

	out, err = run(t, "pending", "--db", db, "--json")
	require.NoError(t, err)

	var pending []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	require.Len(t, pending, 1)
	assert.EqualValues(t, 2, pending[0]["id"])
	assert.Equal(t, "escalated", pending[0]["state"])
}

func TestShow(t *testing.T) {
	db := seedDB(t, "Where is my parcel?")

	out, err := run(t, "show", "1", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "escalated")
	assert.Contains(t, out, "user@example.com")

	_, err = run(t, "show", "42", "--db", db)
	assert.Error(t, err)

	_, err = run(t, "show", "abc", "--db", db)
	assert.Error(t, err)
}

func TestPendingEmpty(t *testing.T) {
	db := seedDB(t)

	out, err := run(t, "pending", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No pending questions.")
}

func TestResolveRejectsBlankFlag(t *testing.T) {
	db := seedDB(t, "Where is my parcel?")

	_, err := run(t, "resolve", "1", "--db", db, "--resolution", "done", "--flag", "  ")
	assert.Error(t, err)

	out, err := run(t, "show", "1", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "escalated")
}

func TestEvaluate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.csv")
	csv := "instruction,response\n" +
		"how do I reset my password,Reset your password via settings.\n" +
		"when do refunds arrive,Refunds take 5 business days.\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	out, err := run(t, "evaluate", "--corpus", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Total Questions: 2")
	assert.Contains(t, out, "Answered: 2")

	_, err = run(t, "evaluate", "--corpus", path, "--threshold", "1.5")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 3, "..."},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.input, tt.maxLen))
	}
}
