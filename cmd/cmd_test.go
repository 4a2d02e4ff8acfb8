package cmd

import (
	"bytes"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"

	"github.com/yuuki0xff/tracevis/config"
)

const scenario = "../tracer/fixture/testdata/scenario.yaml"

// execute runs the root command with args and returns the output.
// Flags are reset before running because cobra keeps the parsed values between runs.
func execute(t *testing.T, args ...string) (string, error) {
	var out string
	var err error
	withConfigDir(t, func(dir string) {
		out, err = executeWithConfig(dir, args...)
	})
	return out, err
}

func withConfigDir(t *testing.T, fn func(dir string)) {
	dir, err := ioutil.TempDir("", ".tracevis.test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir) // nolint: errcheck
	fn(dir)
}

func executeWithConfig(dir string, args ...string) (string, error) {
	for _, c := range append([]*cobra.Command{RootCmd}, RootCmd.Commands()...) {
		reset := func(f *pflag.Flag) {
			f.Value.Set(f.DefValue) // nolint: errcheck
			f.Changed = false
		}
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}

	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	RootCmd.SetErr(&buf)
	RootCmd.SetArgs(append(args, "--config", dir))
	err := RootCmd.Execute()
	return buf.String(), err
}

func TestCatalog(t *testing.T) {
	a := assert.New(t)
	out, err := execute(t, "catalog", scenario)
	a.NoError(err)
	a.Contains(out, "Address: 0x4000")
	a.Contains(out, "Called symbols: 2 of 3 known")
	a.Contains(out, "printf")
	a.Contains(out, "malloc")
	a.Contains(out, "/usr/lib/libc.so.6 (2)")
	a.Contains(out, "[UNKNOWN]")
}

func TestCatalog_thread(t *testing.T) {
	a := assert.New(t)
	out, err := execute(t, "catalog", scenario, "--tid", "3")
	a.NoError(err)
	a.Contains(out, "inflate")
	a.NotContains(out, "printf")

	_, err = execute(t, "catalog", scenario, "--tid", "99")
	a.Equal(errInvalidArgs, errors.Cause(err))
}

func TestMatch(t *testing.T) {
	a := assert.New(t)
	out, err := execute(t, "match", scenario, "--symbol", "printf")
	a.NoError(err)
	a.Contains(out, "2 nodes matched symbol:printf on thread 2")
	a.Contains(out, "/usr/lib/libc.so.6 (1)")

	out, err = execute(t, "match", scenario, "--address", "0x4010")
	a.NoError(err)
	a.Contains(out, "3 nodes matched address:0x4010 on thread 2")
	a.Equal(3, strings.Count(out, "nop"))

	out, err = execute(t, "match", scenario, "--address", "0x4011")
	a.NoError(err)
	a.Contains(out, "1 nodes matched address:0x4011 on thread 2")
	a.Contains(out, "call")

	out, err = execute(t, "match", scenario, "--module", "2")
	a.NoError(err)
	a.Contains(out, "1 nodes matched module:2 on thread 2")
}

func TestMatch_invalidArgs(t *testing.T) {
	a := assert.New(t)
	_, err := execute(t, "match", scenario)
	a.Equal(errInvalidArgs, errors.Cause(err))

	_, err = execute(t, "match", scenario, "--symbol", "printf", "--module", "1")
	a.Equal(errInvalidArgs, errors.Cause(err))

	_, err = execute(t, "match", "testdata/not-exists.yaml", "--symbol", "printf")
	a.Equal(errIo, errors.Cause(err))
}

func TestSimulate(t *testing.T) {
	a := assert.New(t)
	out, err := execute(t, "simulate", scenario, "--batch", "2", "--interval", "0", "--symbol", "malloc")
	a.NoError(err)
	a.Contains(out, "replayed 12 events on 2 threads")
	a.Contains(out, "thread 2: 9 nodes, 3 extern nodes, 2 symbols")
	a.Contains(out, "1 nodes matched symbol:malloc")
}

func TestSaveConfig(t *testing.T) {
	a := assert.New(t)
	withConfigDir(t, func(dir string) {
		_, err := executeWithConfig(dir, "catalog", scenario, "--lock-timeout", "50ms")
		a.NoError(err)
		_, err = os.Stat(path.Join(dir, "config.json"))
		a.True(os.IsNotExist(err))

		_, err = executeWithConfig(dir, "catalog", scenario, "--lock-timeout", "50ms", "--save-config")
		a.NoError(err)
		c := config.NewConfig(dir)
		a.NoError(c.Load())
		a.Equal(config.Duration(50*time.Millisecond), c.Highlight.LockTimeout)
		a.Equal(config.DefaultHighlightConfig().LockWarnInterval, c.Highlight.LockWarnInterval)

		// the saved value is used without the flag.
		_, err = executeWithConfig(dir, "catalog", scenario, "--lock-warn-interval", "20ms", "--save-config")
		a.NoError(err)
		c = config.NewConfig(dir)
		a.NoError(c.Load())
		a.Equal(config.Duration(50*time.Millisecond), c.Highlight.LockTimeout)
		a.Equal(config.Duration(20*time.Millisecond), c.Highlight.LockWarnInterval)
	})
}
