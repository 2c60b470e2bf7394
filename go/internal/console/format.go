package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
)

var (
	goodColor  = color.New(color.FgGreen, color.Bold)
	badColor   = color.New(color.FgRed, color.Bold)
	clockColor = color.New(color.FgCyan)
	infoColor  = color.New(color.FgYellow)
	typeColor  = color.New(color.FgHiBlack)
)

func goodOrBad(good bool) string {
	if good {
		return goodColor.Sprint("GOOD LIFT")
	}
	return badColor.Sprint("NO LIFT")
}

func formatMillis(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// FormatNotification renders a notification as one console line.
func FormatNotification(env *events.Envelope) (string, error) {
	payload, err := events.ParsePayload(env)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", env.Type, err)
	}

	var body string
	switch p := payload.(type) {
	case events.LiftingOrderUpdatedPayload:
		var b strings.Builder
		if p.Current != nil {
			fmt.Fprintf(&b, "%s %s #%d %d kg", p.State, p.Current.Name, p.Current.AttemptNumber, p.Current.Weight)
		} else {
			b.WriteString(p.State)
		}
		if p.Next != nil {
			fmt.Fprintf(&b, ", next %s %d kg", p.Next.Name, p.Next.Weight)
		}
		fmt.Fprintf(&b, " [%s]", clockColor.Sprint(formatMillis(p.TimeAllowedMs)))
		body = b.String()
	case events.TimePayload:
		body = clockColor.Sprintf("%s %s", p.Clock, formatMillis(p.TimeRemainingMs))
	case events.DecisionPayload:
		body = fmt.Sprintf("%s %s #%d %d kg (%s)", goodOrBad(p.Good), p.Name, p.AttemptNumber, p.Weight, p.Source)
	case events.JuryNotificationPayload:
		body = fmt.Sprintf("jury %s %s: %s", strings.ToLower(string(p.Event)), p.Name, goodOrBad(p.Good))
	case events.StatePayload:
		body = infoColor.Sprint(p.Event)
		if p.Info != "" {
			body += " " + p.Info
		}
		body += " (" + p.State + ")"
	case events.GroupDonePayload:
		body = infoColor.Sprintf("group %s done", p.GroupName)
	case events.DownSignalPayload:
		body = "down " + goodOrBad(p.Good)
	case events.RefereeVotePayload:
		body = fmt.Sprintf("referee %d voted (%d/%d)", p.Referee, p.Count, p.Required)
	case events.BreakPayload:
		body = fmt.Sprintf("%s %s", p.Type, p.Mode)
		if p.Paused {
			body += " paused"
		}
		if p.RemainingMs > 0 {
			body += " " + clockColor.Sprint(formatMillis(p.RemainingMs))
		}
	default:
		body = string(env.Data)
	}

	return fmt.Sprintf("%s %s %s",
		env.Timestamp.Local().Format("15:04:05"),
		typeColor.Sprintf("%-19s", env.Type),
		body), nil
}
