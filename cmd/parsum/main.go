// Package main provides the parsum CLI.
//
// Usage:
//
//	parsum run [-n 16384] [-backend auto|cpu|webgpu] [-mode phased|lanes] [-recursive 0] [-config file.yaml] [-v]
//	parsum selftest [-n 10000] [-backend ...]
//	parsum info [-backend ...]
//	parsum version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/born-ml/parsum/backend/cpu"
	"github.com/born-ml/parsum/reduce"
)

const version = "v0.1.0"

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stdout)
		return 0
	}

	var err error
	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "parsum %s\n", version)
		return 0
	case "run":
		err = cmdRun(ctx, args[1:], stdout, stderr)
	case "selftest":
		err = cmdSelftest(ctx, args[1:], stdout, stderr)
	case "info":
		err = cmdInfo(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "parsum %s - workgroup parallel sum of uint32 arrays\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run        Sum 1..=n on the device and check the result")
	fmt.Fprintln(w, "  selftest   Copy n words through the device and count mismatches")
	fmt.Fprintln(w, "  info       Show the selected device")
	fmt.Fprintln(w, "  version    Show version")
}

// options are the flags shared by all device commands.
type options struct {
	cfg     Config
	verbose bool
}

func parseFlags(name string, args []string, stderr io.Writer, defaultN int) (options, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "YAML configuration file")
	n := fs.Int("n", defaultN, "number of input elements")
	backend := fs.String("backend", "", "device: auto, cpu or webgpu")
	mode := fs.String("mode", "", "cpu lane execution: phased or lanes")
	recursive := fs.Int("recursive", -1, "re-dispatch partial sums while more than this many (0 = host sum)")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg := DefaultConfig()
	cfg.N = defaultN
	if *configPath != "" {
		loaded, err := LoadConfig(*configPath)
		if err != nil {
			return options{}, err
		}
		cfg = loaded
	}

	// Explicit flags override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			cfg.N = *n
		case "backend":
			cfg.Backend = *backend
		case "mode":
			cfg.CPU.Mode = cpu.Mode(*mode)
		case "recursive":
			cfg.Reduce.RecursiveThreshold = *recursive
		}
	})
	if err := cfg.Validate(); err != nil {
		return options{}, err
	}
	return options{cfg: cfg, verbose: *verbose}, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openDevice creates the configured device. "auto" prefers WebGPU and falls
// back to the CPU simulation.
func openDevice(cfg Config, logger *slog.Logger) (reduce.Device, error) {
	switch cfg.Backend {
	case backendWebGPU:
		return openGPU()
	case backendCPU:
		return openCPU(cfg.CPU)
	default:
		if gpuAvailable() {
			dev, err := openGPU()
			if err == nil {
				return dev, nil
			}
			logger.Warn("webgpu unavailable, using cpu", "err", err)
		}
		return openCPU(cfg.CPU)
	}
}

func openCPU(cfg cpu.Config) (reduce.Device, error) {
	dev, err := cpu.NewWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func cmdRun(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags("run", args, stderr, DefaultConfig().N)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, opts.verbose)

	dev, err := openDevice(opts.cfg, logger)
	if err != nil {
		return err
	}
	defer dev.Release()
	logger.Debug("device ready", "name", dev.Name(), "max_groups", dev.MaxGroups())

	n := opts.cfg.N
	input := make([]uint32, n)
	for i := range input {
		input[i] = uint32(i + 1) //nolint:gosec // G115: demo input, wraps like the device
	}

	start := time.Now()
	res, err := reduce.New(dev, opts.cfg.Reduce).Sum(ctx, input)
	elapsed := time.Since(start)
	if err != nil {
		return err
	}
	logger.Debug("reduction done", "levels", res.Levels, "stats", fmt.Sprintf("%+v", dev.Stats()))
	if res.OverflowRisk {
		logger.Warn("group sums may have wrapped modulo 2^32")
	}

	expected := reduce.HostSum(input)
	fmt.Fprintf(stdout, "Device: %s\n", dev.Name())
	fmt.Fprintf(stdout, "num_groups = %d\n", res.Groups)
	fmt.Fprintf(stdout, "First partials (up to 16) = %v\n", res.Partials[:min(16, len(res.Partials))])
	fmt.Fprintf(stdout, "Dispatch+readback time: %v\n", elapsed)
	fmt.Fprintf(stdout, "Total from partials = %d\n", res.Total)
	fmt.Fprintf(stdout, "Expected total = %d\n", expected)
	fmt.Fprintf(stdout, "Match: %v\n", res.Total == expected)

	if res.Total != expected {
		return fmt.Errorf("total %d does not match expected %d", res.Total, expected)
	}
	return nil
}

func cmdSelftest(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags("selftest", args, stderr, 10000)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, opts.verbose)

	dev, err := openDevice(opts.cfg, logger)
	if err != nil {
		return err
	}
	defer dev.Release()

	data := make([]uint32, opts.cfg.N)
	for i := range data {
		data[i] = uint32(i) //nolint:gosec // G115: test pattern
	}

	mismatches, err := reduce.RoundTrip(ctx, dev, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "First 32 output values: %v\n", data[:min(32, len(data))])
	fmt.Fprintf(stdout, "Mismatches = %d\n", mismatches)
	if mismatches != 0 {
		return fmt.Errorf("%d of %d words corrupted", mismatches, len(data))
	}
	logger.Info("selftest passed", "device", dev.Name(), "words", len(data))
	return nil
}

func cmdInfo(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags("info", args, stderr, 0)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, opts.verbose)

	dev, err := openDevice(opts.cfg, logger)
	if err != nil {
		return err
	}
	defer dev.Release()

	fmt.Fprintf(stdout, "Device: %s\n", dev.Name())
	fmt.Fprintf(stdout, "Group width: %d\n", reduce.GroupWidth)
	fmt.Fprintf(stdout, "Max groups per dispatch: %d\n", dev.MaxGroups())
	return nil
}
