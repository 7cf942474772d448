package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/zonecast/core/agent"
)

// rootOptions holds flags shared by every command.
type rootOptions struct {
	logLevel   string
	healthAddr string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "zonecast",
		Short:         "Publish and subscribe to education records across zones",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.healthAddr, "health-addr", "", "override the configured health endpoint address")

	cmd.AddCommand(newAgentCommand(opts, agent.RolePublisher))
	cmd.AddCommand(newAgentCommand(opts, agent.RoleSubscriber))

	return cmd
}

func newAgentCommand(opts *rootOptions, role agent.Role) *cobra.Command {
	use, short := "publish", "Run a publishing agent"
	if role == agent.RoleSubscriber {
		use, short = "subscribe", "Run a subscribing agent"
	}

	return &cobra.Command{
		Use:   use + " [config]",
		Short: short,
		Long: short + `.

The agent connects to every configured zone and runs until interrupted.
Without a config path it reads ` + agent.DefaultConfigFile(role) + ` from the
working directory.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				cmd.SetOut(os.Stdout)
				_ = cmd.Usage()
				return fmt.Errorf("%w, got %d arguments", ErrTooManyArgs, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := agent.DefaultConfigFile(role)
			if len(args) == 1 {
				path = args[0]
			}
			return runAgent(cmd.Context(), opts, role, path)
		},
	}
}
