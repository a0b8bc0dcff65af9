package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

type command struct {
	summary string
	run     func(env *cliEnv, args []string) error
}

var commands = map[string]command{
	"search":    {"fuzzy-search a transcript for a phrase", runSearch},
	"stats":     {"print transcript statistics", runStats},
	"word":      {"print one word by utterance number and index", runWord},
	"range":     {"print a range of words inside an utterance", runRange},
	"utterance": {"print an utterance with its words", runUtterance},
	"find":      {"list words containing a text", runFind},
	"timerange": {"list words inside a time range", runTimeRange},
	"export":    {"export words, utterances or the full document as JSON", runExport},
	"script":    {"render the transcript as a movie-style script", runScript},
	"inspect":   {"show the columns detected in a CSV/TSV transcript", runInspect},
}

// cliEnv carries the process-wide state shared by subcommands.
type cliEnv struct {
	stdout  io.Writer
	stderr  io.Writer
	verbose bool
	logger  *zap.Logger
}

func main() {
	env := &cliEnv{stdout: os.Stdout, stderr: os.Stderr}
	if err := run(env, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("speechmine: %v", err)
	}
}

func run(env *cliEnv, args []string) error {
	global := flag.NewFlagSet("speechmine", flag.ContinueOnError)
	global.SetOutput(env.stderr)
	global.BoolVar(&env.verbose, "verbose", false, "Log search diagnostics to stderr")
	global.Usage = func() { usage(env.stderr) }
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		usage(env.stderr)
		return flag.ErrHelp
	}
	name := global.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		usage(env.stderr)
		return fmt.Errorf("unknown command %q", name)
	}

	logger, err := newLogger(env.verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	env.logger = logger

	return cmd.run(env, global.Args()[1:])
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s [-verbose] COMMAND [options] ARGS\n\nCommands:\n", filepath.Base(os.Args[0]))
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "\nRun COMMAND -h for its options.")
}

// parseArgs parses flags that may appear before, between or after positional
// arguments and returns the positionals.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func expectArgs(fs *flag.FlagSet, got []string, minArgs, maxArgs int, names string) error {
	if len(got) < minArgs || len(got) > maxArgs {
		fs.Usage()
		return fmt.Errorf("%s: expected %s", fs.Name(), names)
	}
	return nil
}

func newFlagSet(env *cliEnv, name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: speechmine %s [options] %s\n\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

func trimAll(values ...*string) {
	for _, v := range values {
		*v = strings.TrimSpace(*v)
	}
}
