package cmd

import (
	"io"
	"os"
)

// progressOutput is stderr when it is a terminal, otherwise progress is not
// drawn.
func progressOutput() io.Writer {
	info, err := os.Stderr.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return nil
	}
	return os.Stderr
}
