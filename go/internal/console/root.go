// Package console is the command line operator console of a field of play
// server: it watches a platform like a display and sends commands like the
// announcer's or referees' devices.
package console

import (
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fieldofplay/go/internal/gateway"
	"github.com/spf13/cobra"
)

type options struct {
	server   string
	platform string
	origin   string
	timeout  time.Duration
}

func (o *options) rpcClient() *gateway.RPCClient {
	return gateway.NewRPCClient(&http.Client{Timeout: o.timeout}, o.server, o.origin)
}

// RootCmd returns the fopctl command tree.
func RootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "fopctl",
		Short: "Operate a weightlifting field of play",
		Long: `fopctl talks to a field of play server. It can follow a platform the way
a scoreboard does, show its state and send announcer, marshal, timekeeper,
referee and jury commands.`,
		SilenceUsage: true,
	}

	server := os.Getenv("FOP_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	cmd.PersistentFlags().StringVarP(&opts.server, "server", "s", server, "server base URL")
	cmd.PersistentFlags().StringVarP(&opts.platform, "platform", "p", "A", "platform name")
	cmd.PersistentFlags().StringVar(&opts.origin, "origin", "fopctl-"+uuid.NewString()[:8], "origin token sent with commands")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "request timeout")

	cmd.AddCommand(watchCmd(opts))
	cmd.AddCommand(sendCmd(opts))
	cmd.AddCommand(stateCmd(opts))
	cmd.AddCommand(refereeCmd(opts))
	return cmd
}
