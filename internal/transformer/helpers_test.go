package transformer

import (
	"os"
	"path/filepath"
	"testing"
)

type testDir struct {
	path string
	t    *testing.T
}

func newTestDir(t *testing.T) *testDir {
	t.Helper()

	return &testDir{
		path: t.TempDir(),
		t:    t,
	}
}

func (td *testDir) createFile(name, content string) string {
	td.t.Helper()

	path := filepath.Join(td.path, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		td.t.Fatalf("failed to create test dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		td.t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func (td *testDir) readFile(name string) string {
	td.t.Helper()

	content, err := os.ReadFile(filepath.Join(td.path, name))
	if err != nil {
		td.t.Fatalf("failed to read test file: %v", err)
	}
	return string(content)
}
