package sqlutil

import (
	"testing"
	"time"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name  string
		p     Placeholder
		query string
		want  string
	}{
		{"question untouched", Question, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{"dollar numbered", Dollar, "UPDATE t SET a = ?, b = ? WHERE id = ?", "UPDATE t SET a = $1, b = $2 WHERE id = $3"},
		{"no variables", Dollar, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rebind(tt.p, tt.query); got != tt.want {
				t.Errorf("Rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNullConverters(t *testing.T) {
	if ToNullString("").Valid || !ToNullString("USA").Valid {
		t.Error("ToNullString validity wrong")
	}
	if got := FromSqlString(ToNullString(""), "-"); got != "-" {
		t.Errorf("FromSqlString() = %q, want default", got)
	}
	if got := FromSqlFloat64(ToNullFloat64(80.75)); got != 80.75 {
		t.Errorf("float round trip = %v", got)
	}
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	if got := FromSqlTime(ToSqlTime(&now)); got == nil || !got.Equal(now) {
		t.Errorf("time round trip = %v", got)
	}
	if FromSqlTime(ToSqlTime(nil)) != nil {
		t.Error("nil time should stay nil")
	}
}
