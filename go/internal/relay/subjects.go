package relay

import (
	"fmt"
	"strings"

	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
)

var tokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// SubjectToken turns a platform name into a single NATS subject token.
func SubjectToken(platform string) string {
	if platform == "" {
		return "_"
	}
	return tokenReplacer.Replace(platform)
}

// EventSubject is where notifications of a platform are published:
// <prefix>.<platform>.<type>.
func EventSubject(prefix, platform string, typ events.NotificationType) string {
	return fmt.Sprintf("%s.%s.%s", prefix, SubjectToken(platform), typ)
}

// CommandSubject is where commands for a platform are read: <prefix>.<platform>.
func CommandSubject(prefix, platform string) string {
	return fmt.Sprintf("%s.%s", prefix, SubjectToken(platform))
}

// platformToken extracts the platform token of a command subject.
func platformToken(prefix, subject string) (string, bool) {
	rest, ok := strings.CutPrefix(subject, prefix+".")
	if !ok || rest == "" || strings.Contains(rest, ".") {
		return "", false
	}
	return rest, true
}
