package logger

import "testing"

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		wantNil bool
		want    string
	}{
		{in: "debug", want: "debug"},
		{in: "warn", want: "warn"},
		{in: "error", want: "error"},
		{in: "", wantNil: true},
		{in: "loud", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseLevel(tt.in)
			if tt.wantNil {
				if got != nil {
					t.Errorf("parseLevel(%q) = %v, want nil", tt.in, got)
				}
				return
			}
			if got == nil || got.String() != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestNopLoggerWith(t *testing.T) {
	l := NewNop().With(String("conference", "sfscon"))
	l.Info("discarded", Int("n", 1), Bool("ok", true))
	if err := l.Sync(); err != nil {
		t.Logf("Sync() on nop logger = %v", err)
	}
}
