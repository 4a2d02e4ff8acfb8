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
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yuuki0xff/tracevis/tracer/graph"
)

// matchCmd represents the match command
var matchCmd = &cobra.Command{
	Use:   "match <trace.yaml> {--address ADDR | --symbol NAME | --module ID}",
	Short: "List the nodes which match the criterion",
	Args:  cobra.ExactArgs(1),
	RunE:  wrap(runMatch),
}

func runMatch(opt *handlerOpt) error {
	crit, err := parseCriterion(opt.Cmd.Flags())
	if err != nil {
		opt.ErrLog.Println(err)
		return errInvalidArgs
	}
	if crit == nil {
		opt.ErrLog.Println("one of --address, --symbol or --module is required")
		return errInvalidArgs
	}

	t, err := opt.loadTrace()
	if err != nil {
		return err
	}
	p, err := t.Build(opt.graphOptions()...)
	if err != nil {
		opt.ErrLog.Println(err)
		return errGeneral
	}
	g, err := opt.selectThread(p)
	if err != nil {
		return err
	}

	state := &graph.State{}
	state.SetActive(p, g)
	session := opt.newSession(state)
	session.SetCriterion(crit)
	nodes, err := session.Match()
	if err != nil {
		return errors.Wrapf(err, "failed to match %s", crit)
	}

	tbl := defaultTable(opt.Stdout)
	tbl.SetHeader(nodeHeader)
	for _, n := range nodes {
		tbl.Append(nodeRow(n, p, g))
	}
	tbl.Render()
	fmt.Fprintf(opt.Stdout, "\n%d nodes matched %s on thread %s\n", len(nodes), crit, g.TID())
	return nil
}

func init() {
	RootCmd.AddCommand(matchCmd)
	matchCmd.Flags().AddFlagSet(threadFlags())
	matchCmd.Flags().AddFlagSet(criterionFlags())
}
