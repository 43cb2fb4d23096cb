package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUUID = "0b7d1a4e-6f6b-4c6e-9d0a-3c1f2b5e8a90"
	trunkURL = "https://svn.example.com/repo/trunk"
	sha1Hex  = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

const trackYAML = `
- path: a
  revision: 6
  url: https://svn.example.com/repo/trunk/a
  lock_token: opaquelocktoken:a
  changelist: review
  checksum: $md5$00112233445566778899aabbccddeeff
  props:
    svn:eol-style: native
    stale: old
- path: c
  kind: dir
  revision: 6
  url: https://svn.example.com/repo/trunk/c
- path: c/d
  revision: 6
  url: https://svn.example.com/repo/trunk/c/d
- path: c/e
  revision: 6
  url: https://svn.example.com/repo/trunk/c/e
`

const commitCUE = `
revision: 7
author:   "sally"
date:     "2024-05-01T10:00:00Z"

records: [
	{
		path:              "a"
		remove_lock:       true
		remove_changelist: true
		sha1:              "` + sha1Hex + `"
		props: {
			"svn:wc:ra_dav:version-url": "/!svn/ver/7/a"
			stale:                       null
		}
	},
	{path: "c", recursive: true},
]
`

type cliRun struct {
	code   int
	stdout string
	stderr string
}

// runCLI executes the command line against db.
func runCLI(t *testing.T, db string, args ...string) cliRun {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(append(args, "--db", db), &stdout, &stderr)
	return cliRun{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func decodeResponse(t *testing.T, data []byte) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(data, &resp), "stdout: %s", data)
	return resp
}

// seedWorkingCopy creates the administrative area and tracks trackYAML.
func seedWorkingCopy(t *testing.T) (db, dir string) {
	t.Helper()
	dir = t.TempDir()
	db = filepath.Join(dir, "adm", "wcq.db")

	r := runCLI(t, db, "ensure-adm", ".", "--uuid", testUUID, "--url", trunkURL, "--revision", "6")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "Administrative area ready: . ("+trunkURL+" at r6)\n", r.stdout)

	r = runCLI(t, db, "track", writeFile(t, dir, "nodes.yaml", trackYAML))
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "Tracked 4 node(s)\n", r.stdout)
	return db, dir
}

func TestWorkflow_FinalizeCommit(t *testing.T) {
	db, dir := seedWorkingCopy(t)

	r := runCLI(t, db, "status")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "6\n", r.stdout)

	r = runCLI(t, db, "finalize", writeFile(t, dir, "commit.cue", commitCUE))
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Finalize r7: ok\n")
	assert.Contains(t, r.stdout, "  applied:     4\n")
	assert.Contains(t, r.stdout, "  failed:      0\n")
	assert.Contains(t, r.stdout, "Run: ")

	r = runCLI(t, db, "show", "a", "--format", "json")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	resp := decodeResponse(t, []byte(r.stdout))
	assert.Equal(t, "ok", resp.Status)
	node, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(7), node["revision"])
	assert.Equal(t, float64(7), node["changed_rev"])
	assert.Equal(t, "sally", node["changed_author"])
	assert.Equal(t, "2024-05-01T10:00:00Z", node["changed_date"])
	assert.Equal(t, "$sha1$"+sha1Hex, node["checksum"])
	assert.NotContains(t, node, "lock_token")
	assert.NotContains(t, node, "changelist")

	propList, ok := node["props"].([]any)
	require.True(t, ok)
	var names []string
	for _, p := range propList {
		names = append(names, p.(map[string]any)["name"].(string))
	}
	assert.Equal(t, []string{"svn:eol-style", "svn:wc:ra_dav:version-url"}, names)

	r = runCLI(t, db, "show", "c/e")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "path: c/e\n")
	assert.Contains(t, r.stdout, "revision: 7\n")

	r = runCLI(t, db, "status")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "6:7\n", r.stdout)

	r = runCLI(t, db, "status", "c", "--committed")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "7\n", r.stdout)

	r = runCLI(t, db, "runs")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.True(t, strings.HasPrefix(r.stdout, "1  r7  applied=4 failed=0 not_applied=0  "), r.stdout)

	r = runCLI(t, db, "report")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "op: finish")

	r = runCLI(t, db, "report", "--format", "json")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	data := decodeResponse(t, []byte(r.stdout)).Data.(map[string]any)
	assert.Equal(t, ".", data["root"])
	var calls []string
	for _, c := range data["calls"].([]any) {
		call := c.(map[string]any)
		path, _ := call["path"].(string)
		calls = append(calls, strings.TrimSpace(call["op"].(string)+" "+path))
	}
	assert.Equal(t, []string{"set_path", "set_path a", "set_path c", "finish"}, calls)

	r = runCLI(t, db, "cleanup")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "Cleanup complete: removed 0 orphaned propert(ies)\n", r.stdout)
}

func TestEnsureAdm_Conflict(t *testing.T) {
	db, _ := seedWorkingCopy(t)

	r := runCLI(t, db, "ensure-adm", ".", "--uuid", testUUID, "--url", trunkURL)
	assert.Equal(t, ExitSuccess, r.code, r.stderr)

	r = runCLI(t, db, "ensure-adm", ".", "--uuid", testUUID, "--url", "https://svn.example.com/repo/branches/b")
	assert.Equal(t, ExitCommandError, r.code)
	assert.Contains(t, r.stderr, "Error [E009]")
}

func TestEnsureAdm_MissingFlags(t *testing.T) {
	db := filepath.Join(t.TempDir(), "wcq.db")
	r := runCLI(t, db, "ensure-adm", ".")
	assert.Equal(t, ExitCommandError, r.code)
	assert.Contains(t, r.stderr, "required flag")
}

func TestTrack_BadChecksum(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "wcq.db")
	file := writeFile(t, dir, "nodes.yaml", "- path: a\n  checksum: $md5$0011\n")

	r := runCLI(t, db, "track", file)
	assert.Equal(t, ExitCommandError, r.code)
	assert.Contains(t, r.stderr, "track a")
}

func TestFinalize_Incomplete(t *testing.T) {
	db, dir := seedWorkingCopy(t)
	manifest := writeFile(t, dir, "commit.cue", `
revision: 3
records: [{path: "a"}, {path: "ghost"}, {path: "c/d"}]
`)

	r := runCLI(t, db, "finalize", manifest)
	assert.Equal(t, ExitFailure, r.code)
	assert.Contains(t, r.stdout, "Finalize r3: incomplete\n")
	assert.Contains(t, r.stdout, "  applied:     2\n")
	assert.Contains(t, r.stdout, "  FAIL ghost: ")
	assert.NotContains(t, r.stderr, "Error [")

	r = runCLI(t, db, "runs", "--format", "json")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	resp := decodeResponse(t, []byte(r.stdout))
	runs := resp.Data.(map[string]any)["runs"].([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, float64(1), runs[0].(map[string]any)["failed"])
}

func TestFinalize_IncompleteJSON(t *testing.T) {
	db, dir := seedWorkingCopy(t)
	manifest := writeFile(t, dir, "commit.cue", `records: [{path: "ghost"}]`)

	r := runCLI(t, db, "finalize", manifest, "--format", "json", "--revision", "9")
	assert.Equal(t, ExitFailure, r.code)
	assert.Equal(t, 1, strings.Count(r.stdout, "\n"), "one envelope: %s", r.stdout)

	resp := decodeResponse(t, []byte(r.stdout))
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(9), data["revision"])
	assert.Equal(t, float64(0), data["applied"])
	failures := data["failures"].([]any)
	require.Len(t, failures, 1)
	assert.Equal(t, "ghost", failures[0].(map[string]any)["path"])
}

func TestFinalize_CommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		args     []string
		code     string
	}{
		{name: "missing manifest", code: ErrCodeManifest},
		{name: "invalid cue", manifest: "records: [", code: ErrCodeManifest},
		{name: "empty path", manifest: `records: [{path: ""}]`, code: ErrCodeValidation},
		{name: "bad date flag", manifest: `records: []`, args: []string{"--date", "yesterday"}, code: ErrCodeConfig},
		{name: "negative revision flag", manifest: `records: []`, args: []string{"--revision", "-1"}, code: ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			db := filepath.Join(dir, "wcq.db")
			path := filepath.Join(dir, "missing.cue")
			if tt.manifest != "" {
				path = writeFile(t, dir, "commit.cue", tt.manifest)
			}

			r := runCLI(t, db, append([]string{"finalize", path}, tt.args...)...)
			assert.Equal(t, ExitCommandError, r.code)
			assert.Contains(t, r.stderr, "Error ["+tt.code+"]")
		})
	}
}

func TestFinalize_ManifestDirectory(t *testing.T) {
	db, dir := seedWorkingCopy(t)
	pkg := filepath.Join(dir, "commit")
	require.NoError(t, os.Mkdir(pkg, 0755))
	writeFile(t, pkg, "commit.cue", "package commit\n\nrevision: 8\n")
	writeFile(t, pkg, "records.cue", "package commit\n\nrecords: [{path: \"c\", recursive: true}]\n")

	r := runCLI(t, db, "finalize", pkg)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Finalize r8: ok\n")
	assert.Contains(t, r.stdout, "  applied:     3\n")
}

func TestShow_NotTracked(t *testing.T) {
	db, _ := seedWorkingCopy(t)

	r := runCLI(t, db, "show", "nowhere")
	assert.Equal(t, ExitCommandError, r.code)
	assert.Contains(t, r.stderr, "Error [E005]")
}

func TestStatus_Switched(t *testing.T) {
	db, dir := seedWorkingCopy(t)
	writeFile(t, dir, "switch.yaml", `
- path: c/e
  revision: 6
  url: https://svn.example.com/repo/branches/b/e
  modified: true
`)
	r := runCLI(t, db, "track", filepath.Join(dir, "switch.yaml"))
	require.Equal(t, ExitSuccess, r.code, r.stderr)

	r = runCLI(t, db, "status", "--format", "json")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	data := decodeResponse(t, []byte(r.stdout)).Data.(map[string]any)
	assert.Equal(t, true, data["switched"])
	assert.Equal(t, true, data["modified"])

	r = runCLI(t, db, "status")
	assert.Equal(t, "6MS\n", r.stdout)
}

func TestReport_NotTracked(t *testing.T) {
	db := filepath.Join(t.TempDir(), "wcq.db")
	r := runCLI(t, db, "report", "nowhere")
	assert.Equal(t, ExitCommandError, r.code)
	assert.Contains(t, r.stderr, "report root not tracked")
}

func TestIgnore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "wcq.db")

	r := runCLI(t, db, "ignore", "foo.o", "README")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "I foo.o (*.o)\n  README\n", r.stdout)

	r = runCLI(t, db, "ignore", "foo.o", "build", "--no-global", "-p", "build")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "  foo.o\nI build (build)\n", r.stdout)

	r = runCLI(t, db, "ignore", "{a,b}", "a", "[x", "--no-global", "-p", "{a,b}", "-p", "[x")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "I {a,b} ({a,b})\n  a\nI [x ([x)\n", r.stdout)

	r = runCLI(t, db, "ignore", ".svn", "--no-global")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "I .svn (adm)\n", r.stdout)
}

func TestIgnore_ConfigGlobalList(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "wcq.yaml", "ignore:\n  global: [\"*.tmp\"]\n")

	r := runCLI(t, filepath.Join(dir, "wcq.db"), "ignore", "a.tmp", "a.o", "--config", cfg)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "I a.tmp (*.tmp)\n  a.o\n", r.stdout)
}

func TestRuns_Empty(t *testing.T) {
	r := runCLI(t, filepath.Join(t.TempDir(), "wcq.db"), "runs")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "No finalize runs recorded.\n", r.stdout)
}
