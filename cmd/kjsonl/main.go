// Command kjsonl inspects and edits KJSONL files.
//
// Usage:
//
//	kjsonl [-log-level LEVEL] get FILE KEY...
//	kjsonl [-log-level LEVEL] delete FILE KEY...
//	kjsonl [-log-level LEVEL] json [-compact] FILE
//	kjsonl [-log-level LEVEL] merge -o TARGET SOURCE...
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/bsm/kjsonl"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "kjsonl: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()

	if *version {
		printVersion()
		return nil
	}

	ll := &slog.LevelVar{}
	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return errors.New("missing command")
	}

	switch cmd, args := args[0], args[1:]; cmd {
	case "get":
		return runGet(args)
	case "delete":
		return runDelete(args)
	case "json":
		return runJSON(args)
	case "merge":
		return runMerge(args)
	default:
		return fmt.Errorf("unknown command: %q", cmd)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: kjsonl [flags] get FILE KEY...\n")
	fmt.Fprintf(out, "       kjsonl [flags] delete FILE KEY...\n")
	fmt.Fprintf(out, "       kjsonl [flags] json [-compact] FILE\n")
	fmt.Fprintf(out, "       kjsonl [flags] merge -o TARGET SOURCE...\n\n")
	flag.PrintDefaults()
}

func runGet(args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("get: expected FILE and at least one KEY")
	}

	g, err := kjsonl.Open(fs.Arg(0), &kjsonl.GetterOptions{NoWatch: true})
	if err != nil {
		return err
	}
	defer g.Release()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	var missing int
	for _, key := range fs.Args()[1:] {
		val, err := g.Get(key)
		if errors.Is(err, kjsonl.ErrNotFound) {
			slog.Warn("key not found", "key", key)
			missing++
			continue
		} else if err != nil {
			return err
		}
		if err := enc.Encode(val); err != nil {
			return err
		}
	}
	if missing != 0 {
		return fmt.Errorf("get: %d of %d keys not found", missing, fs.NArg()-1)
	}
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("delete: expected FILE and at least one KEY")
	}

	n, err := kjsonl.Delete(fs.Arg(0), fs.Args()[1:]...)
	if err != nil {
		return err
	}
	slog.Info("deleted", "file", fs.Arg(0), "lines", n)
	return nil
}

func runJSON(args []string) error {
	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	compact := fs.Bool("compact", false, "Disable indentation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("json: expected exactly one FILE")
	}

	if err := kjsonl.ExportJSON(os.Stdout, fs.Arg(0), &kjsonl.ExportOptions{Compact: *compact}); err != nil {
		return err
	}
	_, err := fmt.Fprintln(os.Stdout)
	return err
}

func runMerge(args []string) error {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	target := fs.String("o", "", "Target file, created if missing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *target == "" {
		return errors.New("merge: -o is required")
	}
	if fs.NArg() == 0 {
		return errors.New("merge: expected at least one SOURCE")
	}

	stats, err := kjsonl.MergeFiles(*target, fs.Args(), nil)
	if err != nil {
		return err
	}
	slog.Info("merged", "file", *target, "written", stats.Written, "duplicates", stats.Duplicates)
	return nil
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("kjsonl %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
