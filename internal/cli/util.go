package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/ocs-tools/ocsdeck/internal/ocs"
	"github.com/ocs-tools/ocsdeck/internal/output"
)

// fail routes an error through the structured printer when possible;
// plain errors fall through to Execute's catch-all.
func fail(err error) error {
	var cliErr *output.CLIError
	if errors.As(err, &cliErr) {
		return output.PrintCLIErrorOrJSON(cliErr, jsonOutput)
	}
	if jsonOutput {
		return output.PrintError(err, true)
	}
	return err
}

// parseParams converts key=value arguments into dispatch parameters.
// Values parse as bool, then integer, then float, then fall back to
// string, matching how agents type their own param schemas.
func parseParams(args []string) (ocs.Params, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(ocs.Params, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("parameter %q is not key=value", arg)
		}
		params[key] = parseValue(raw)
	}
	return params, nil
}

func parseValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// IsInteractive returns true when the writer is a terminal. The live
// monitor needs a real terminal; in pipes it must refuse rather than
// spray escape sequences.
func IsInteractive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
