package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rxaigc/vibesub/internal/cmd"
	"github.com/rxaigc/vibesub/internal/exitcode"
	"github.com/rxaigc/vibesub/internal/ux"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(os.Stderr, "\nInterrupted")
			exitcode.Exit(exitcode.Interrupted)
		}

		if !ux.IsReported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", ux.EnhanceError(err))
		}
		exitcode.ExitWithError(err)
	}
	exitcode.Exit(exitcode.Success)
}
