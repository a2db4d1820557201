package logger

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		env, level string
		ok         bool
	}{
		{"local", "", true},
		{"prod", "warn", true},
		{"prod", "loud", false},
	}
	for _, tt := range tests {
		l, err := New("market-service", tt.env, tt.level)
		if (err == nil) != tt.ok {
			t.Errorf("New(%q, %q) err = %v, want ok=%v", tt.env, tt.level, err, tt.ok)
		}
		if l != nil {
			_ = l.Sync()
		}
	}
}
