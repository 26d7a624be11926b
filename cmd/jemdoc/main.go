// Command jemdoc indexes, searches and checks the generated search data of
// the jem and jive API reference from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var version = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		// Validation and diff failures have already been reported
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, colorError.Sprint("Error:"), err)
		}
		os.Exit(1)
	}
}
