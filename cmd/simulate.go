// Copyright © 2018 yuuki0xff <yuuki0xff@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yuuki0xff/tracevis/tracer/graph"
	"github.com/yuuki0xff/tracevis/tracer/simulator"
	"github.com/yuuki0xff/tracevis/viewer"
)

// simulateCmd represents the simulate command
var simulateCmd = &cobra.Command{
	Use:   "simulate <trace.yaml>",
	Short: "Replay a trace while refreshing the highlight catalog concurrently",
	Args:  cobra.ExactArgs(1),
	RunE:  wrap(runSimulate),
}

func runSimulate(opt *handlerOpt) error {
	flags := opt.Cmd.Flags()
	crit, err := parseCriterion(flags)
	if err != nil {
		opt.ErrLog.Println(err)
		return errInvalidArgs
	}
	interval, _ := flags.GetDuration("interval")
	batch, _ := flags.GetInt("batch")
	metricsAddr, _ := flags.GetString("metrics-addr")

	t, err := opt.loadTrace()
	if err != nil {
		return err
	}
	sim, err := simulator.New(t, opt.graphOptions()...)
	if err != nil {
		opt.ErrLog.Println(err)
		return errGeneral
	}
	sim.Interval = interval
	sim.BatchSize = batch
	g, err := opt.selectThread(sim.Process)
	if err != nil {
		return err
	}

	state := &graph.State{}
	state.SetActive(sim.Process, g)
	session := opt.newSession(state)
	session.SetCriterion(crit)
	vm := &viewer.HighlightVM{
		Session:  session,
		Interval: opt.Conf.Highlight.RefreshInterval.Duration(),
		ErrLog:   opt.ErrLog,
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(session.Collectors()...)

	writerCtx, cancelWriter := context.WithCancel(context.Background())
	defer cancelWriter()
	eg, ctx := errgroup.WithContext(writerCtx)
	viewerCtx, stopViewer := context.WithCancel(ctx)
	defer stopViewer()

	if metricsAddr != "" {
		ln, err := net.Listen("tcp", metricsAddr)
		if err != nil {
			opt.ErrLog.Println(err)
			return errIo
		}
		srv := &http.Server{
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		fmt.Fprintf(opt.Stderr, "serving metrics on http://%s/metrics\n", ln.Addr())
		go srv.Serve(ln) // nolint: errcheck
		defer srv.Close() // nolint: errcheck
	}

	start := time.Now()
	eg.Go(func() error {
		defer stopViewer()
		return sim.Run(ctx)
	})
	eg.Go(func() error {
		viewer.Updater{}.Run(viewerCtx, vm)
		return nil
	})
	if err := eg.Wait(); err != nil {
		opt.ErrLog.Println(err)
		return errGeneral
	}

	// the writer was stopped. update with the final state.
	vm.Update(context.Background())
	s := vm.State()
	if s.Err != nil {
		return s.Err
	}
	fmt.Fprintf(opt.Stdout, "replayed %d events on %d threads in %s\n",
		sim.Applied(), len(sim.Process.Threads()), time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(opt.Stdout, "thread %s: %d nodes, %d extern nodes, %d symbols, %d modules\n",
		g.TID(), g.NodeCount(), g.ExternCount(), len(s.Symbols), len(s.Modules))
	if s.Criterion != nil {
		fmt.Fprintf(opt.Stdout, "%d nodes matched %s\n", len(s.Highlighted), s.Criterion)
	}
	return nil
}

func init() {
	RootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().AddFlagSet(threadFlags())
	simulateCmd.Flags().AddFlagSet(criterionFlags())
	simulateCmd.Flags().Duration("interval", time.Millisecond, "pause between the event batches.")
	simulateCmd.Flags().Int("batch", simulator.DefaultBatchSize, "number of events in a batch.")
	simulateCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on the address while replaying. (example: 127.0.0.1:9100)")
}
