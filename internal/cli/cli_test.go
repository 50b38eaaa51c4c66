package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aidanlsb/chronos/internal/testutil"
)

var captureStdoutMu sync.Mutex

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	captureStdoutMu.Lock()
	defer captureStdoutMu.Unlock()

	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}

	os.Stdout = w

	outputCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		var buf bytes.Buffer
		_, copyErr := io.Copy(&buf, r)
		_ = r.Close()
		if copyErr != nil {
			errCh <- copyErr
			return
		}
		outputCh <- buf.String()
	}()

	fn()

	os.Stdout = orig
	_ = w.Close()
	select {
	case err := <-errCh:
		t.Fatalf("io.Copy: %v", err)
		return ""
	case out := <-outputCh:
		return out
	}
}

// resetGlobalsForTest clears every flag-bound variable so runs don't leak
// into each other.
func resetGlobalsForTest(t *testing.T) {
	t.Helper()
	configPath = ""
	homeFlag = ""
	jsonOutput = false
	verbose = false
	renamePrintEvents = false
	serveListen = ""
	eventsSince = ""
	cfg = nil
	resolved = nil
	resolvedConfigPath = ""

	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) { f.Changed = false })
		}
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

// runCLI executes the root command in-process and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), args...)
}

func runCLIContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	resetGlobalsForTest(t)
	t.Cleanup(func() { resetGlobalsForTest(t) })

	var runErr error
	out := captureStdout(t, func() {
		rootCmd.SetArgs(args)
		runErr = rootCmd.ExecuteContext(ctx)
	})
	return out, runErr
}

// runJSON runs a command against home with --json and parses the envelope.
func runJSON(t *testing.T, home *testutil.TestHome, args ...string) *testutil.CLIResult {
	t.Helper()
	full := append([]string{"--json", "--home", home.Path, "--config", homeConfig(t, home)}, args...)
	out, err := runCLI(t, full...)
	exitCode := 0
	if err != nil {
		exitCode = 1
	}
	return testutil.ParseCLIResult([]byte(out), exitCode)
}

// homeConfig returns the home's config.toml, creating an empty one if needed.
func homeConfig(t *testing.T, home *testutil.TestHome) string {
	t.Helper()
	path := filepath.Join(home.Path, "config.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	return path
}
