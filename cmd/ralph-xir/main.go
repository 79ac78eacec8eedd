package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raymyers/ralph-xir/pkg/validate"
	"github.com/raymyers/ralph-xir/pkg/xir"
	"github.com/raymyers/ralph-xir/pkg/xiryaml"
)

var version = "0.1.0"

// Debug flags for dumping intermediate representations
var (
	dXir bool
)

// Output and run options
var (
	outputFormat string
	jobs         int
	watch        bool
	verbose      bool
	configPath   string
)

// ErrInvalid is returned when at least one member fails validation
var ErrInvalid = errors.New("validation failed")

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	// Accept the single-dash dump flags of the other ralph tools
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// debugFlagNames lists the dump flags that may be written with a single dash
var debugFlagNames = []string{"dxir"}

// normalizeFlags converts single-dash dump flags like -dxir to --dxir
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		for _, flagName := range debugFlagNames {
			if arg == "-"+flagName {
				result[i] = "--" + flagName
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ralph-xir [file]",
		Short: "ralph-xir type checks xir files",
		Long: `ralph-xir validates xir intermediate representation files written in
YAML. Every function body is checked by simulating its operand stack;
every static initializer is checked against its declared type. Failures
are reported per member and no member is skipped because another failed.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			filename := args[0]

			cfg, err := loadConfig(configPath)
			if err != nil {
				fmt.Fprintf(errOut, "ralph-xir: %v\n", err)
				return err
			}
			cfg = applyFlags(cmd, cfg)
			if err := cfg.check(); err != nil {
				fmt.Fprintf(errOut, "ralph-xir: %v\n", err)
				return err
			}

			logger := newLogger(errOut, cfg.Verbose)
			check := func() error {
				return doValidate(filename, cfg, out, errOut, logger)
			}
			if watch {
				return watchFile(cmd.Context(), filename, check, logger)
			}
			return check()
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	// Add debug flags
	rootCmd.Flags().BoolVarP(&dXir, "dxir", "", false, "Dump the resolved IR")

	// Add run flags
	rootCmd.Flags().StringVar(&outputFormat, "format", formatText, "Output format: text or json")
	rootCmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "Functions to check in parallel (0 = one per CPU)")
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Revalidate whenever the file changes")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every checked member")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Config file (default "+defaultConfigFile+" if present)")

	return rootCmd
}

// newLogger builds the stderr logger. Only warnings are shown unless
// verbose is set.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// doValidate decodes, validates and reports one file
func doValidate(filename string, cfg Config, out, errOut io.Writer, logger *slog.Logger) error {
	f, err := xiryaml.DecodeFile(filename)
	if err != nil {
		return reportFatal(cfg, filename, codeDecode, err, out, errOut)
	}

	report, err := validate.File(f, validate.Options{Logger: logger, Jobs: cfg.Jobs})
	if err != nil {
		return reportFatal(cfg, filename, string(validate.CodeOf(err)), err, out, errOut)
	}

	if cfg.Format == formatJSON {
		if err := writeJSONReport(out, filename, report, cfg.DumpIR); err != nil {
			return err
		}
	} else {
		if cfg.DumpIR {
			xir.NewPrinter(out).PrintFile(report.File)
		}
		writeTextReport(errOut, filename, report)
	}

	if !report.Valid() {
		return ErrInvalid
	}
	return nil
}
