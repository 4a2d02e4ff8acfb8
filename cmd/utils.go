package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/yuuki0xff/tracevis/config"
	"github.com/yuuki0xff/tracevis/tracer/fixture"
	"github.com/yuuki0xff/tracevis/tracer/graph"
	"github.com/yuuki0xff/tracevis/tracer/highlight"
	"github.com/yuuki0xff/tracevis/tracer/types"
)

// func(*handlerOpt) error が返すエラーの一覧
var (
	errGeneral     = errors.New("general error")
	errInvalidArgs = errors.New("invalid args")
	errIo          = errors.New("io error")
)

func Execute() int {
	err := RootCmd.Execute()
	switch errors.Cause(err) {
	case nil:
		return 0
	case errGeneral:
		return 1
	case errInvalidArgs:
		// EX_USAGE 64
		return 64
	case errIo:
		// EX_IOERR 74
		return 74
	default:
		// Unknown error
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
}

type cobraHandler func(cmd *cobra.Command, args []string) error
type handlerOpt struct {
	Conf    *config.Config
	Cmd     *cobra.Command
	Args    []string
	Stdout  io.Writer
	Stderr  io.Writer
	ErrLog  *log.Logger
	WarnLog *log.Logger
}

func wrap(fn func(*handlerOpt) error) cobraHandler {
	return func(cmd *cobra.Command, args []string) error {
		c, err := getConfig()
		if err != nil {
			return err
		}

		ha := handlerOpt{
			Conf:    c,
			Cmd:     cmd,
			Args:    args,
			Stdout:  cmd.OutOrStdout(),
			Stderr:  cmd.OutOrStderr(),
			ErrLog:  log.New(cmd.OutOrStderr(), "ERROR: ", 0),
			WarnLog: log.New(cmd.OutOrStderr(), "WARNING: ", 0),
		}
		if err := fn(&ha); err != nil {
			return err
		}
		if err := c.SaveIfWant(); err != nil {
			ha.ErrLog.Printf("failed to save the config to %s: %s", c.Dir(), err)
			return errIo
		}
		return nil
	}
}

func getConfig() (*config.Config, error) {
	c := config.NewConfig(cfgDir)
	err := c.Load()
	if err != nil {
		return nil, err
	}
	if viper.IsSet("lock-timeout") {
		c.Highlight.LockTimeout = config.Duration(viper.GetDuration("lock-timeout"))
	}
	if viper.IsSet("lock-warn-interval") {
		c.Highlight.LockWarnInterval = config.Duration(viper.GetDuration("lock-warn-interval"))
	}
	if viper.GetBool("save-config") {
		c.WantSave()
	}
	return c, nil
}

func defaultTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetColumnSeparator(" ")
	table.SetCenterSeparator(" ")
	table.SetRowSeparator("-")
	// デフォルトの行の幅は狭すぎるため、無駄な折り返しが生じる。
	// これを回避するために、大きめの値を設定する。
	table.SetColWidth(120)
	return table
}

// threadFlags are shared by the commands which select a thread graph.
func threadFlags() *pflag.FlagSet {
	f := pflag.NewFlagSet("thread", pflag.ContinueOnError)
	f.Uint32P("tid", "t", 0, "thread ID to select. (default: the smallest thread ID)")
	return f
}

// criterionFlags are shared by the "match" and "simulate" commands.
func criterionFlags() *pflag.FlagSet {
	f := pflag.NewFlagSet("criterion", pflag.ContinueOnError)
	f.StringP("address", "a", "", "highlight the executions of the instruction at the address.")
	f.StringP("symbol", "s", "", "highlight the calls to the symbol.")
	f.StringP("module", "m", "", "highlight the calls to the module ID.")
	return f
}

// parseCriterion builds a criterion from the flags defined by criterionFlags().
// It returns nil if no criterion is specified.
func parseCriterion(f *pflag.FlagSet) (highlight.Criterion, error) {
	var crit highlight.Criterion
	for _, kind := range []string{highlight.KindAddress, highlight.KindSymbol, highlight.KindModule} {
		flag := f.Lookup(kind)
		if flag == nil || !flag.Changed {
			continue
		}
		if crit != nil {
			return nil, errors.Wrap(errInvalidArgs, "--address, --symbol and --module are mutually exclusive")
		}
		c, err := highlight.ParseCriterion(kind, flag.Value.String())
		if err != nil {
			return nil, errors.Wrap(errInvalidArgs, err.Error())
		}
		crit = c
	}
	return crit, nil
}

func (opt *handlerOpt) graphOptions() []graph.Option {
	return []graph.Option{
		graph.WithLockTimeout(opt.Conf.Highlight.LockTimeout.Duration()),
		graph.WithWarnInterval(opt.Conf.Highlight.LockWarnInterval.Duration()),
		graph.WithLogger(opt.WarnLog),
	}
}

// loadTrace reads the trace file given as the first argument.
func (opt *handlerOpt) loadTrace() (*fixture.Trace, error) {
	if len(opt.Args) != 1 {
		opt.ErrLog.Println("missing trace file")
		return nil, errInvalidArgs
	}
	t, err := fixture.LoadFile(opt.Args[0])
	if err != nil {
		opt.ErrLog.Println(err)
		return nil, errIo
	}
	return t, nil
}

// selectThread returns the thread graph specified by --tid flag.
func (opt *handlerOpt) selectThread(p *graph.Process) (*graph.ThreadGraph, error) {
	tid, err := opt.Cmd.Flags().GetUint32("tid")
	if err != nil {
		return nil, err
	}
	if !opt.Cmd.Flags().Changed("tid") {
		threads := p.Threads()
		if len(threads) == 0 {
			opt.ErrLog.Println("the trace has no threads")
			return nil, errInvalidArgs
		}
		return threads[0], nil
	}
	g, ok := p.Thread(types.ThreadID(tid))
	if !ok {
		opt.ErrLog.Printf("thread not found: tid=%d", tid)
		return nil, errInvalidArgs
	}
	return g, nil
}

func (opt *handlerOpt) newSession(state *graph.State) *highlight.Session {
	return highlight.NewSession(state, highlight.WithSessionLogger(opt.WarnLog))
}

var nodeHeader = []string{"Node", "Address", "Module", "Symbol", "Extern", "Instruction"}

func nodeRow(n *types.Node, p *graph.Process, g *graph.ThreadGraph) []string {
	return []string{
		strconv.Itoa(int(n.Index)),
		n.Address.Hex(),
		moduleName(p, n.Module),
		g.SymbolOf(n.Index, p),
		strconv.FormatBool(n.External),
		g.InstructionOf(n.Index, p),
	}
}

// moduleName returns the path of the module with its ID.
func moduleName(p *graph.Process, id types.ModuleID) string {
	path, ok := p.ModulePath(id)
	switch {
	case !ok:
		return id.String()
	case path == types.UnknownModulePath:
		path = highlight.UnknownModuleLabel
	}
	return fmt.Sprintf("%s (%s)", path, id)
}
