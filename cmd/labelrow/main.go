package main

import (
	"fmt"
	"io"
	"os"

	"github.com/akamensky/argparse"

	"github.com/heimdex/heimdex-labels/internal/logging"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit status: 2 for
// usage errors, 1 for failures.
func run(args []string, stdout, stderr io.Writer) int {
	parser := argparse.NewParser("labelrow", "Inspect and edit label-row payloads offline")
	ontologyPath := parser.String("t", "ontology", &argparse.Options{Help: "Ontology structure JSON file", Required: true})
	inputPath := parser.String("i", "input", &argparse.Options{Help: "Label-row payload JSON file", Required: true})
	logLevel := parser.String("", "log-level", &argparse.Options{Help: "debug, info, warn or error", Default: "warn"})

	normalizeCmd := parser.NewCommand("normalize", "Decode and re-encode a payload in canonical form")
	normalizeOut := normalizeCmd.String("o", "output", &argparse.Options{Help: "Write to this file instead of stdout"})

	statsCmd := parser.NewCommand("stats", "Summarise the instances in a payload")

	validateCmd := parser.NewCommand("validate", "Check a payload against its ontology")

	interpolateCmd := parser.NewCommand("interpolate", "Fill an object's frames between its keyframes")
	instance := interpolateCmd.String("n", "instance", &argparse.Options{Help: "Object hash", Required: true})
	frameSpec := interpolateCmd.String("f", "frames", &argparse.Options{Help: "Frames to fill, eg 1-3,7", Required: true})
	interpolateOut := interpolateCmd.String("o", "output", &argparse.Options{Help: "Write to this file instead of stdout"})

	if err := parser.Parse(args); err != nil {
		fmt.Fprint(stderr, parser.Usage(err))
		return 2
	}

	logger := logging.New(stderr, *logLevel)
	t, err := newTool(*ontologyPath, *inputPath, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	switch {
	case normalizeCmd.Happened():
		err = withOutput(stdout, *normalizeOut, t.normalize)
	case statsCmd.Happened():
		err = t.stats(stdout)
	case validateCmd.Happened():
		err = t.validate(stdout)
	case interpolateCmd.Happened():
		err = withOutput(stdout, *interpolateOut, func(w io.Writer) error {
			return t.interpolate(w, *instance, *frameSpec)
		})
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
