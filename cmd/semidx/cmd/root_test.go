package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs a fresh root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// newTestProject creates a small indexable project tree.
func newTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "main.go", `package main

import "fmt"

// connectDatabase opens the primary database connection pool.
func connectDatabase(dsn string) error {
	fmt.Println("connecting to", dsn)
	return nil
}

func main() {
	_ = connectDatabase("postgres://localhost/app")
}
`)
	writeFile(t, dir, "README.md", `# Test App

## Setup

Install dependencies and run the indexer before first use.
`)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRootCmd_Help(t *testing.T) {
	out, err := execute(t, "--help")

	require.NoError(t, err)
	assert.Contains(t, out, "semidx")
	assert.Contains(t, out, "index")
	assert.Contains(t, out, "search")
	assert.Contains(t, out, "watch")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	_, err := execute(t, "definitely-not-a-command")

	assert.Error(t, err)
}

func TestIndexCmd_IndexesProject(t *testing.T) {
	dir := newTestProject(t)

	out, err := execute(t, "index", dir, "--offline", "--no-color")

	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 file(s)")

	_, statErr := os.Stat(filepath.Join(dir, ".semidx", "index.db"))
	assert.NoError(t, statErr)
}

func TestIndexCmd_SecondRunSkipsUnchanged(t *testing.T) {
	dir := newTestProject(t)

	_, err := execute(t, "index", dir, "--offline", "--no-color")
	require.NoError(t, err)

	out, err := execute(t, "index", dir, "--offline", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 0 file(s)")
	assert.Contains(t, out, "2 unchanged")
}

func TestSearchCmd_NoIndex(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := execute(t, "search", "anything", "--offline")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}
