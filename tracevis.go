package main

import (
	"os"

	"github.com/yuuki0xff/tracevis/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
