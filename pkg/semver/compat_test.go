package semver

import "testing"

func TestParseProtocolVersion(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		major   uint64
		wantErr bool
	}{
		{input: "v0.2", want: "v0.2.0", major: 0},
		{input: "v1", want: "v1.0.0", major: 1},
		{input: " v2.3.4 ", want: "v2.3.4", major: 2},
		{input: "v0.3.0-beta.1", want: "v0.3.0-beta.1", major: 0},
		{input: "0.2", wantErr: true},
		{input: "v", wantErr: true},
		{input: "vx.1", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProtocolVersion(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("semver:compat_test - expected error for %q", tt.input)
				}
				if IsValid(tt.input) {
					t.Errorf("semver:compat_test - IsValid(%q) = true", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("semver:compat_test - unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("semver:compat_test - String() = %q, want %q", got.String(), tt.want)
			}
			if got.Major != tt.major {
				t.Errorf("semver:compat_test - Major = %d, want %d", got.Major, tt.major)
			}
		})
	}
}

func TestCompatPrefix(t *testing.T) {
	tests := []struct {
		self string
		want string
	}{
		{"v0.2", "v0."},
		{"v1.0", "v1."},
		{"v12.4.1", "v12."},
		{"draft.7", "draft."},
		{"nodots", "nodots"},
	}
	for _, tt := range tests {
		if got := CompatPrefix(tt.self); got != tt.want {
			t.Errorf("semver:compat_test - CompatPrefix(%q) = %q, want %q", tt.self, got, tt.want)
		}
	}
}

func TestIsCompatible(t *testing.T) {
	tests := []struct {
		name   string
		self   string
		peer   string
		prefix string
		want   bool
	}{
		{"exact match", "v0.2", "v0.2", "v0.", true},
		{"same prefix", "v0.2", "v0.9", "v0.", true},
		{"different major", "v1.0", "v0.2", "v1.", false},
		{"empty peer", "v0.2", "", "v0.", false},
		{"exact match without prefix", "custom", "custom", "", true},
		{"empty prefix rejects others", "custom", "other", "", false},
		{"literal, not semantic", "v0.2", "v0.2-rc", "v0.", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCompatible(tt.self, tt.peer, tt.prefix); got != tt.want {
				t.Errorf("semver:compat_test - IsCompatible(%q, %q, %q) = %v, want %v", tt.self, tt.peer, tt.prefix, got, tt.want)
			}
		})
	}
}

func TestNewer(t *testing.T) {
	if !Newer("v0.3", "v0.2") {
		t.Error("semver:compat_test - v0.3 should be newer than v0.2")
	}
	if Newer("v0.2", "v0.2") {
		t.Error("semver:compat_test - equal versions are not newer")
	}
	if Newer("garbage", "v0.1") || Newer("v0.1", "garbage") {
		t.Error("semver:compat_test - unparseable versions never compare as newer")
	}
}
