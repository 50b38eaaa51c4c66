package sqlutil

import "testing"

func TestRebind(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM logs WHERE script = ?", "SELECT * FROM logs WHERE script = $1"},
		{"UPDATE scripts SET uid = ?, name = ? WHERE uid = ?", "UPDATE scripts SET uid = $1, name = $2 WHERE uid = $3"},
	}
	for _, tt := range tests {
		if got := Rebind(tt.in); got != tt.want {
			t.Errorf("Rebind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
