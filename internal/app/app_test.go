package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packden/packden/internal/hcl"
)

// scaffoldProject writes a small project with two entries sharing one
// module, plus its packden.hcl, and returns the config file path.
func scaffoldProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"src/a.js":      `import { s } from "./shared.js";` + "\nconsole.log('a', s);\n",
		"src/b.js":      `import { s } from "./shared.js";` + "\nconsole.log('b', s);\n",
		"src/shared.js": "export const s = 1;\n",
		"packden.hcl": `
project {
  entries = ["src/a.js", "src/b.js"]

  environment {
    context = "browser"
  }
}
`,
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return filepath.Join(root, "packden.hcl")
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	var out bytes.Buffer
	appConfig, err := NewConfig(cfg)
	require.NoError(t, err)
	return NewApp(&out, appConfig, hcl.NewLoader())
}

func TestRunProducesBundles(t *testing.T) {
	configPath := scaffoldProject(t)
	a := newTestApp(t, Config{ConfigPath: configPath, LogLevel: "error", LogFormat: "text"})

	require.NoError(t, a.Run(context.Background()))

	distDir := a.Project().DistDir
	entries, err := filepath.Glob(filepath.Join(distDir, "*.js"))
	require.NoError(t, err)
	require.Len(t, entries, 2, "one bundle per entry")

	var bundleA string
	for _, path := range entries {
		if strings.HasPrefix(filepath.Base(path), "a.") {
			bundleA = path
		}
	}
	require.NotEmpty(t, bundleA)

	data, err := os.ReadFile(bundleA)
	require.NoError(t, err)
	code := string(data)

	// Dependency-first: the shared module and the injected loader come
	// before the entry's own code.
	assert.Less(t, strings.Index(code, "export const s"), strings.Index(code, "console.log('a'"))
	assert.Less(t, strings.Index(code, "__packden_require"), strings.Index(code, "console.log('a'"))
}

func TestRunIsRepeatable(t *testing.T) {
	configPath := scaffoldProject(t)
	a := newTestApp(t, Config{ConfigPath: configPath, LogLevel: "error", LogFormat: "text"})

	require.NoError(t, a.Run(context.Background()))
	require.NoError(t, a.Run(context.Background()))
}

func TestRunWatchModeShutsDownCleanly(t *testing.T) {
	configPath := scaffoldProject(t)
	a := newTestApp(t, Config{ConfigPath: configPath, LogLevel: "error", Watch: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Wait for the first build to land before shutting down.
	distDir := a.Project().DistDir
	require.Eventually(t, func() bool {
		entries, err := filepath.Glob(filepath.Join(distDir, "*.js"))
		return err == nil && len(entries) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err, "watch mode should exit cleanly on cancellation")
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestNewAppPanicsOnMissingConfig(t *testing.T) {
	var out bytes.Buffer
	appConfig, err := NewConfig(Config{ConfigPath: "/does/not/exist.hcl", LogLevel: "error"})
	require.NoError(t, err)

	assert.Panics(t, func() { NewApp(&out, appConfig, hcl.NewLoader()) })
}

func TestWorkersFlagOverridesProject(t *testing.T) {
	configPath := scaffoldProject(t)
	a := newTestApp(t, Config{ConfigPath: configPath, LogLevel: "error", Workers: 3})
	assert.Equal(t, 3, a.Project().Workers)
}
