package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/datastack/datastack/pkg/models/kennel"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peopleDoc = `[
  {"id": 1, "name": "alice", "dogs": [{"id": 1, "name": "Oreo", "chip": "981000123456789"}]},
  {"id": 2, "name": "bob"}
]`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand("test", "none", "today")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setupWorkspace(t *testing.T) (configPath, dataDir string) {
	t.Helper()

	dir := t.TempDir()
	configPath = filepath.Join(dir, "datastack.yaml")
	dataDir = filepath.Join(dir, "data")

	out, err := run(t, "init", "--config", configPath, "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Created config file")
	assert.Contains(t, out, "Store ready")

	return configPath, dataDir
}

func TestInitCreatesStore(t *testing.T) {
	configPath, dataDir := setupWorkspace(t)

	assert.FileExists(t, configPath)
	assert.FileExists(t, filepath.Join(dataDir, kennel.ModelName+".sqlite"))

	out, err := run(t, "init", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

func TestImportThenList(t *testing.T) {
	configPath, _ := setupWorkspace(t)

	doc := filepath.Join(t.TempDir(), "people.json")
	require.NoError(t, os.WriteFile(doc, []byte(peopleDoc), 0o600))

	out, err := run(t, "import", "--config", configPath, doc)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 people from 1 files")

	out, err = run(t, "list", "--config", configPath, "--json", "--name", "alice")
	require.NoError(t, err)

	var people []kennel.Person
	require.NoError(t, json.Unmarshal([]byte(out), &people))
	require.Len(t, people, 1)
	assert.Equal(t, "alice", people[0].Name)
	require.Len(t, people[0].Dogs, 1)
	assert.Equal(t, "981000123456789", people[0].Dogs[0].Chip)
}

func TestListTextOutput(t *testing.T) {
	configPath, _ := setupWorkspace(t)

	doc := filepath.Join(t.TempDir(), "people.json")
	require.NoError(t, os.WriteFile(doc, []byte(peopleDoc), 0o600))
	_, err := run(t, "import", "--config", configPath, doc)
	require.NoError(t, err)

	out, err := run(t, "list", "--config", configPath)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "list", []byte(out))
}

func TestImportManyFilesKeepsOrder(t *testing.T) {
	configPath, _ := setupWorkspace(t)

	dir := t.TempDir()
	var files []string
	for i, name := range []string{"ann", "ben", "cid", "dot", "eve", "fay"} {
		file := filepath.Join(dir, name+".cue")
		doc := fmt.Sprintf("// %s\n{id: %d, name: %q}\n", name, i+1, name)
		require.NoError(t, os.WriteFile(file, []byte(doc), 0o600))
		files = append(files, file)
	}

	out, err := run(t, append([]string{"import", "--config", configPath}, files...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 6 people from 6 files")

	out, err = run(t, "list", "--config", configPath, "--json")
	require.NoError(t, err)

	var people []kennel.Person
	require.NoError(t, json.Unmarshal([]byte(out), &people))
	require.Len(t, people, 6)
	for i, p := range people {
		assert.Equal(t, int64(i+1), p.ID)
	}
}

func TestImportRejectsInvalidDocument(t *testing.T) {
	configPath, _ := setupWorkspace(t)

	doc := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(doc, []byte(`{"id": 0, "name": ""}`), 0o600))

	_, err := run(t, "import", "--config", configPath, doc)
	assert.Error(t, err)

	out, err := run(t, "list", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No people stored")
}

func TestStatusReportsStore(t *testing.T) {
	configPath, dataDir := setupWorkspace(t)

	out, err := run(t, "status", "--config", configPath, "--json")
	require.NoError(t, err)

	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, kennel.ModelName, report.Model)
	assert.Equal(t, filepath.Join(dataDir, kennel.ModelName+".sqlite"), report.Location)
	assert.Equal(t, uint(2), report.SchemaVersion)
	assert.False(t, report.Recovered)
}

func TestInMemoryFlag(t *testing.T) {
	configPath, _ := setupWorkspace(t)

	out, err := run(t, "status", "--config", configPath, "--in-memory", "--json")
	require.NoError(t, err)

	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, ":memory:", report.Location)
	assert.Equal(t, "in-memory", report.Format)
}

func TestWipeRequiresForce(t *testing.T) {
	configPath, dataDir := setupWorkspace(t)
	storeFile := filepath.Join(dataDir, kennel.ModelName+".sqlite")

	_, err := run(t, "wipe", "--config", configPath)
	assert.Error(t, err)
	assert.FileExists(t, storeFile)

	_, err = run(t, "wipe", "--config", configPath, "--force")
	require.NoError(t, err)
	assert.NoFileExists(t, storeFile)
}

func TestBackupAndRestore(t *testing.T) {
	configPath, _ := setupWorkspace(t)

	doc := filepath.Join(t.TempDir(), "people.json")
	require.NoError(t, os.WriteFile(doc, []byte(peopleDoc), 0o600))
	_, err := run(t, "import", "--config", configPath, doc)
	require.NoError(t, err)

	backup := filepath.Join(t.TempDir(), "backup.sqlite")
	_, err = run(t, "backup", "--config", configPath, "--out", backup)
	require.NoError(t, err)
	assert.FileExists(t, backup)

	_, err = run(t, "wipe", "--config", configPath, "--force")
	require.NoError(t, err)

	_, err = run(t, "restore", "--config", configPath, "--from", backup, "--force")
	require.NoError(t, err)

	out, err := run(t, "list", "--config", configPath, "--json")
	require.NoError(t, err)

	var people []kennel.Person
	require.NoError(t, json.Unmarshal([]byte(out), &people))
	assert.Len(t, people, 2)
}

func TestUnknownModel(t *testing.T) {
	_, err := modelFor("zoo")
	assert.Error(t, err)
}
