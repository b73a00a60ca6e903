package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Exit statuses.
const (
	exitValid   = 0
	exitInvalid = 1
	exitFatal   = 2
)

// exitError carries a process exit status out of a command. A nil err means
// the command already reported everything it had to say.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func fatalf(format string, args ...any) error {
	return &exitError{code: exitFatal, err: fmt.Errorf(format, args...)}
}

// rootOptions holds flags that are not bound into the config.
type rootOptions struct {
	apkPath    string
	configFile string
	watch      bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tfvalidate",
		Short: "Validate the tuning fork configuration of an APK",
		Long: `tfvalidate checks the tuning fork schema, settings and fidelity
parameters packaged in an APK against the structural rules the tuning fork
runtime relies on.

The schema (assets/tuningfork/dev_tuningfork.proto) is compiled with protoc,
or with the built-in parser when --builtin is given. Every violation found is
reported, grouped by kind.

Exit status is 0 when the APK is valid, 1 when structural errors were found
and 2 when validation could not run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, stdout, stderr)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.apkPath, "apk-path", "", "APK, zip archive or unpacked asset directory to validate")
	f.StringVar(&opts.configFile, "config", "", "Config file merged over user and project config")
	f.BoolVar(&opts.watch, "watch", false, "Validate again whenever the APK changes")
	f.String("protoc", "", "Path to the protoc compiler")
	f.Bool("builtin", false, "Compile the schema in-process instead of with protoc")
	f.Duration("timeout", 0, "Timeout for a single compiler run (e.g. 30s)")
	f.String("format", "text", "Report format: text, json or yaml")
	f.Bool("no-color", false, "Disable colored output")
	f.String("log-level", "info", "Log level: debug, info, warn or error")
	f.String("log-format", "console", "Log format: console or json")

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.AddCommand(newVersionCmd(stdout))
	cmd.AddCommand(newConfigCmd(stdout))

	return cmd
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitValid
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			printStatus(stderr, "✗", ee.err.Error(), color.FgRed)
		}
		return ee.code
	}
	printStatus(stderr, "✗", err.Error(), color.FgRed)
	return exitFatal
}

// printStatus prints a colored symbol followed by a message.
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}
