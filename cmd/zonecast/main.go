// Command zonecast runs a publishing or subscribing agent.
//
//	zonecast publish [config.yaml]
//	zonecast subscribe [config.yaml]
//
// Without a path the agent reads PublishingAgent.yaml or SubscribingAgent.yaml
// from the working directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "zonecast:", err)
		stop()
		os.Exit(1)
	}
}
