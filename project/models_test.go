package project

import "testing"

func TestIsOwner(t *testing.T) {
	tests := []struct {
		name     string
		owner    string
		identity string
		want     bool
	}{
		{"exact", "user_owner", "user_owner", true},
		{"padded identity", "user_owner", " user_owner\t", true},
		{"padded owner", " user_owner ", "user_owner", true},
		{"other", "user_owner", "user_other", false},
		{"case differs", "user_owner", "USER_OWNER", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Project{OwnerID: tt.owner}
			if got := p.IsOwner(tt.identity); got != tt.want {
				t.Errorf("IsOwner(%q): got %v, want %v", tt.identity, got, tt.want)
			}
		})
	}
}
