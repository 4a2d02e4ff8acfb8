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
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yuuki0xff/tracevis/tracer/graph"
	"github.com/yuuki0xff/tracevis/tracer/highlight"
)

// catalogCmd represents the catalog command
var catalogCmd = &cobra.Command{
	Use:   "catalog <trace.yaml>",
	Short: "List the symbols and modules which can be highlighted",
	Args:  cobra.ExactArgs(1),
	RunE:  wrap(runCatalog),
}

func runCatalog(opt *handlerOpt) error {
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
	cat, err := session.RefreshCatalog()
	if err != nil {
		return errors.Wrap(err, "failed to build the catalog")
	}
	printCatalog(opt, p, session, cat)
	return nil
}

func printCatalog(opt *handlerOpt, p *graph.Process, session *highlight.Session, cat highlight.Catalog) {
	fmt.Fprintf(opt.Stdout, "Address: %s\n", session.AddressHint())
	fmt.Fprintf(opt.Stdout, "Called symbols: %d of %d known\n\n", len(cat.Symbols), p.SymbolCount())

	tbl := defaultTable(opt.Stdout)
	tbl.SetHeader([]string{"Symbol"})
	for _, sym := range cat.Symbols {
		tbl.Append([]string{sym})
	}
	tbl.Render()
	fmt.Fprintln(opt.Stdout)

	tbl = defaultTable(opt.Stdout)
	tbl.SetHeader([]string{"ID", "Module"})
	for _, m := range session.ModuleLabels() {
		tbl.Append([]string{strconv.Itoa(int(m.Module)), m.Label})
	}
	tbl.Render()
}

func init() {
	RootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().AddFlagSet(threadFlags())
}
