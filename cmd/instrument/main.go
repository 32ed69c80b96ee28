package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/yashanand1910/wasm-bytecode-instrumenter/instrument"
	"github.com/yashanand1910/wasm-bytecode-instrumenter/report"
)

func main() {
	var (
		runFn       = flag.String("run", "", "After rewriting, execute this exported function and print counters")
		runArgs     = flag.String("args", "", "Arguments for -run (comma-separated unsigned integers)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Debug logging")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 2 {
		usage()
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			instrument.SetLogger(logger)
			defer logger.Sync()
		}
	}

	if err := run(flag.Arg(0), flag.Arg(1), *runFn, *runArgs, *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: instrument <monitor> <file.wasm>")
	fmt.Fprintln(os.Stderr, "       instrument -run <export> [-args 1,2] <monitor> <file.wasm>")
	fmt.Fprintln(os.Stderr, "       instrument -i <monitor> <file.wasm>  (interactive mode)")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Monitors: branch | hotness")
	flag.PrintDefaults()
}

func run(monitorName, path, runFn, runArgs string, interactive bool) error {
	monitor, err := instrument.ParseMonitor(monitorName)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", path)
		}
		return fmt.Errorf("read file: %w", err)
	}

	out, manifest, err := instrument.Transform(data, monitor)
	if err != nil {
		return err
	}

	outPath := outputPath(path, monitor.MemoryName())
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("Wrote %s\n", outPath)
	fmt.Printf("Functions: %d, counter slots: %d, memory export: %q\n",
		len(manifest.Funcs), manifest.TotalSlots(), manifest.MemoryName())

	if interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("interactive mode requires a terminal")
		}
		return runInteractive(outPath, out)
	}

	if runFn != "" {
		return runOnce(out, runFn, runArgs)
	}
	return nil
}

// outputPath places the rewritten module next to the input, tagging the
// file stem with the monitor name and preserving the extension.
func outputPath(path, monitorName string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	return filepath.Join(filepath.Dir(path), stem+"-"+monitorName+ext)
}

func runOnce(out []byte, fn, argsStr string) error {
	ctx := context.Background()

	args, err := parseArgs(argsStr)
	if err != nil {
		return err
	}

	results, snap, err := report.Run(ctx, out, fn, args...)
	if err != nil {
		return err
	}

	if len(results) > 0 {
		fmt.Printf("Result: %v\n", results)
	}
	snap.Render(os.Stdout)
	return nil
}

func parseArgs(s string) ([]uint64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	args := make([]uint64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad argument %q: %w", p, err)
		}
		args = append(args, v)
	}
	return args, nil
}
