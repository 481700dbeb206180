package ui

import "testing"

func setColorEnv(t *testing.T, noColor, force, clicolor string) {
	t.Helper()
	t.Setenv("NO_COLOR", noColor)
	t.Setenv("CLICOLOR_FORCE", force)
	t.Setenv("CLICOLOR", clicolor)
}

func TestColorOverridePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		noColor  string
		force    string
		clicolor string
		wantOn   bool
		wantOK   bool
	}{
		{"no overrides", "", "", "", false, false},
		{"NO_COLOR disables", "1", "", "", false, true},
		{"NO_COLOR beats force", "x", "1", "", false, true},
		{"force enables", "", "1", "", true, true},
		{"force beats CLICOLOR=0", "", " 1 ", "0", true, true},
		{"CLICOLOR=0 disables", "", "", "0", false, true},
		{"CLICOLOR=1 is not an override", "", "", "1", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setColorEnv(t, tt.noColor, tt.force, tt.clicolor)
			on, ok := colorOverride()
			if on != tt.wantOn || ok != tt.wantOK {
				t.Errorf("colorOverride() = (%v, %v), want (%v, %v)", on, ok, tt.wantOn, tt.wantOK)
			}
		})
	}
}

func TestShouldUseColorHonorsOverrides(t *testing.T) {
	setColorEnv(t, "", "1", "")
	if !ShouldUseColor() {
		t.Error("ShouldUseColor() = false with CLICOLOR_FORCE=1, want true")
	}
	setColorEnv(t, "1", "1", "")
	if ShouldUseColor() {
		t.Error("ShouldUseColor() = true with NO_COLOR set, want false")
	}
}
