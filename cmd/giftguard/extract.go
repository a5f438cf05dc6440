package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zombor/giftguard/internal/extract"
	"github.com/zombor/giftguard/internal/gifticon"
)

// Exit statuses of the --extract-text mode
const (
	exitOK         = 0
	exitFailure    = 1
	exitIncomplete = 2
)

// extractOutput is the JSON printed by --extract-text
type extractOutput struct {
	*extract.Result
	Complete bool            `json:"complete"`
	Missing  []extract.Field `json:"missing,omitempty"`
	Message  string          `json:"message"`
}

// runExtractText runs the extraction engine over a text file, or stdin when
// path is "-", and writes the result as JSON.
func runExtractText(path string, stdin io.Reader, stdout, stderr io.Writer, today time.Time) int {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: reading %s: %v\n", path, err)
		return exitFailure
	}

	result, err := extract.Extract(string(data), today)
	if result == nil {
		fmt.Fprintf(stderr, "error: %s\n", gifticon.FailureMessage(err))
		return exitIncomplete
	}

	out := extractOutput{Result: result, Complete: err == nil, Message: gifticon.FailureMessage(err)}
	var incomplete *extract.IncompleteError
	if errors.As(err, &incomplete) {
		out.Missing = incomplete.Missing
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(out); encErr != nil {
		fmt.Fprintf(stderr, "error: writing result: %v\n", encErr)
		return exitFailure
	}
	if err != nil {
		return exitIncomplete
	}
	return exitOK
}
