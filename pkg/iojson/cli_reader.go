package iojson

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Input provides the standard file-or-stdin input source for commands
// that accept a JSON payload.
type Input struct {
	fileFlagValue string
}

func (in *Input) Flag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "file",
		Aliases:     []string{"f"},
		Usage:       "path to JSON file (reads from stdin if not provided)",
		Destination: &in.fileFlagValue,
	}
}

// Open returns the reader for the payload. Callers must close it.
// When no file is given and stdin is a terminal, an error is returned
// instead of blocking on an empty pipe.
func (in *Input) Open() (io.ReadCloser, error) {
	if in.fileFlagValue != "" {
		f, err := os.Open(in.fileFlagValue)
		if err != nil {
			return nil, fmt.Errorf("open file: %w", err)
		}
		return f, nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("no input provided (stdin is a terminal); use -f flag or pipe JSON input")
	}

	return io.NopCloser(os.Stdin), nil
}
