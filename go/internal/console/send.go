package console

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/mcdev12/fieldofplay/go/internal/gateway"
	"github.com/spf13/cobra"
)

// ParseCommand builds a command from its type name and optional JSON data.
func ParseCommand(typ, data string) (events.Command, error) {
	env := events.CommandEnvelope{Type: events.CommandType(typ)}
	if data != "" {
		if !json.Valid([]byte(data)) {
			return nil, fmt.Errorf("command data is not valid JSON: %s", data)
		}
		env.Data = json.RawMessage(data)
	}
	return events.DecodeCommand(&env)
}

func sendCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "send <command> [json-data]",
		Short: "Send a command to a platform",
		Example: `  fopctl send SwitchGroup '{"group_id":"9c5e..."}'
  fopctl send TimeStarted
  fopctl send WeightChange '{"athlete_id":"1f0b...","weight":121}'
  fopctl send BreakStarted '{"type":"BEFORE_INTRODUCTION","mode":"DURATION","duration_ms":600000}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := ""
			if len(args) == 2 {
				data = args[1]
			}
			c, err := ParseCommand(args[0], data)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			if err := opts.rpcClient().Submit(ctx, opts.platform, c); err != nil {
				return fmt.Errorf("%s rejected: %w", c.CommandType(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", goodColor.Sprint("ok"), c.CommandType())
			return nil
		},
	}
}

func stateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the state of a platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			raw, err := opts.rpcClient().State(ctx, opts.platform)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
}

// refereeCmd votes like a referee device, over the referee WebSocket.
func refereeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "referee <1-3> <good|bad>",
		Short: "Send a referee decision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid referee number %q", args[0])
			}
			var good bool
			switch args[1] {
			case "good", "white":
				good = true
			case "bad", "red":
			default:
				return fmt.Errorf("decision must be good or bad, got %q", args[1])
			}

			conn, _, err := dial(opts, string(gateway.RoleReferee))
			if err != nil {
				return err
			}
			defer conn.Close()

			env, err := events.EncodeCommand(opts.platform, "", events.RefereeDecision{Referee: n, Good: good})
			if err != nil {
				return err
			}
			if err := conn.WriteJSON(env); err != nil {
				return fmt.Errorf("send decision: %w", err)
			}
			for {
				var msg struct {
					Type string                `json:"type"`
					Data gateway.CommandResult `json:"data"`
				}
				if err := conn.ReadJSON(&msg); err != nil {
					return fmt.Errorf("read result: %w", err)
				}
				if msg.Type != gateway.MessageCommandResult {
					continue
				}
				if !msg.Data.OK {
					return fmt.Errorf("decision rejected: %s (%s)", msg.Data.Error, msg.Data.Code)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "referee %d: %s\n", n, goodOrBad(good))
				return nil
			}
		},
	}
}
