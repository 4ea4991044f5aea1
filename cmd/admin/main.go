// Command admin is the operator tool for the MyGES Like API: it runs
// database migrations and manages accounts that cannot be created through
// the public API, such as teachers.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cc := newCommandContext()
	defer cc.close()

	cmd := newRootCommand(cc)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		cc.close()
		os.Exit(1)
	}
}
