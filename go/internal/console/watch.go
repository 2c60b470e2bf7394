package console

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/fieldofplay/go/internal/fop"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/mcdev12/fieldofplay/go/internal/gateway"
	"github.com/spf13/cobra"
)

// websocketURL maps the server base URL to the platform endpoint.
func websocketURL(server, platform, role string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/platforms/" + platform
	u.RawQuery = url.Values{"role": []string{role}}.Encode()
	return u.String(), nil
}

func dial(opts *options, role string) (*websocket.Conn, *fop.Snapshot, error) {
	target, err := websocketURL(opts.server, opts.platform, role)
	if err != nil {
		return nil, nil, err
	}
	dialer := websocket.Dialer{HandshakeTimeout: opts.timeout}
	conn, _, err := dialer.Dial(target, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", target, err)
	}

	var first struct {
		Type string       `json:"type"`
		Data fop.Snapshot `json:"data"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("read snapshot: %w", err)
	}
	if first.Type != gateway.MessageSnapshot {
		conn.Close()
		return nil, nil, fmt.Errorf("expected %s, got %s", gateway.MessageSnapshot, first.Type)
	}
	return conn, &first.Data, nil
}

// FormatSnapshot renders the header printed when a watch starts.
func FormatSnapshot(s *fop.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "platform %s: %s", s.Platform, infoColor.Sprint(s.State))
	if s.GroupName != "" {
		fmt.Fprintf(&b, ", group %s", s.GroupName)
	}
	if s.Current != nil {
		fmt.Fprintf(&b, ", current %s #%d %d kg", s.Current.Name, s.Current.AttemptNumber, s.Current.Weight)
	}
	fmt.Fprintf(&b, " [%s]", clockColor.Sprint(formatMillis(s.AthleteClock.RemainingMs)))
	return b.String()
}

func watchCmd(opts *options) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the notifications of a platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, snap, err := dial(opts, string(gateway.RoleDisplay))
			if err != nil {
				return err
			}
			defer conn.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, FormatSnapshot(snap))
			return watch(conn, out, raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print notifications as JSON")
	return cmd
}

func watch(conn *websocket.Conn, out io.Writer, raw bool) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read notification: %w", err)
		}
		if raw {
			fmt.Fprintln(out, string(msg))
			continue
		}
		env, err := events.ParseEnvelope(msg)
		if err != nil {
			return err
		}
		line, err := FormatNotification(env)
		if err != nil {
			fmt.Fprintln(out, string(msg))
			continue
		}
		fmt.Fprintln(out, line)
	}
}

func printJSON(out io.Writer, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(pretty))
	return err
}
