package util

import (
	"io/ioutil"
	"os"
)

// WithTempFile writes data to a temporary file and calls fn with the file path.
// The file is removed after fn returns.
func WithTempFile(data []byte, fn func(tmpfile string)) {
	file, err := ioutil.TempFile("", ".tracevis.test")
	if err != nil {
		panic(err)
	}
	defer func() {
		err = os.Remove(file.Name())
		if err != nil {
			panic(err)
		}
	}()

	if _, err = file.Write(data); err != nil {
		panic(err)
	}
	if err = file.Close(); err != nil {
		panic(err)
	}
	fn(file.Name())
}
