// Command patentworld loads PatentsView bulk tables, builds the published
// statistics, and audits them.
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

	apperrors "patentworld/internal/errors"
)

// Exit codes
const (
	exitOK           = 0
	exitError        = 1
	exitClaimsFailed = 2
)

// errClaimsFailed marks an audit that ran but found failing claims
var errClaimsFailed = errors.New("audit found failing claims")

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and maps the outcome to an exit code
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{stdout: stdout, stderr: stderr}
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := c.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err == nil {
		return exitOK
	}

	if c.logger != nil {
		c.logger.ErrorContext(ctx, "Command failed",
			slog.String("error", err.Error()),
			slog.String("error_type", string(apperrors.TypeOf(err))))
	}
	fmt.Fprintln(stderr, "Error:", err)

	if errors.Is(err, errClaimsFailed) {
		return exitClaimsFailed
	}
	return exitError
}
