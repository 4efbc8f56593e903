package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// outcomeColor picks the ANSI colour for an outcome or decision label.
func outcomeColor(label string) string {
	switch label {
	case "moved", "deleted", "localized":
		return ansiGreen
	case "skipped", "retained", "reused", "young":
		return ansiYellow
	case "failed", "error":
		return ansiRed
	default:
		return ""
	}
}

func paint(label string, colorize bool) string {
	if !colorize {
		return label
	}
	color := outcomeColor(label)
	if color == "" {
		return label
	}
	return color + label + ansiReset
}
