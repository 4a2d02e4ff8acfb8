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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yuuki0xff/tracevis/info"
)

var cfgDir string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     info.AppName,
	Short:   "Highlight instructions, symbols and modules in execution traces",
	Version: info.Version,

	// Silence unnecessary messages.
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgDir, "config", "", "config dir (default is "+info.DefaultConfigDir+")")
	RootCmd.PersistentFlags().Duration("lock-timeout", 0, "maximum wait for the extern list lock (overrides the config)")
	RootCmd.PersistentFlags().Duration("lock-warn-interval", 0, "interval of warnings while waiting for the lock (overrides the config)")
	RootCmd.PersistentFlags().Bool("save-config", false, "save the lock settings to the config dir")
	viper.BindPFlag("lock-timeout", RootCmd.PersistentFlags().Lookup("lock-timeout"))             // nolint: errcheck
	viper.BindPFlag("lock-warn-interval", RootCmd.PersistentFlags().Lookup("lock-warn-interval")) // nolint: errcheck
	viper.BindPFlag("save-config", RootCmd.PersistentFlags().Lookup("save-config"))               // nolint: errcheck
}

// initConfig reads in ENV variables if set.
// example: TRACEVIS_LOCK_TIMEOUT=500ms
func initConfig() {
	viper.SetEnvPrefix(info.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
