package browser

import "testing"

func TestShouldBlock(t *testing.T) {
	blockSet := map[string]bool{"images": true, "fonts": true}

	cases := []struct {
		resType string
		want    bool
	}{
		{"Image", true},
		{"Font", true},
		{"Media", false},
		{"Stylesheet", false},
		{"Document", false},
		{"Script", false},
	}
	for _, tc := range cases {
		if got := shouldBlock(blockSet, tc.resType); got != tc.want {
			t.Errorf("shouldBlock(%q): got %v, want %v", tc.resType, got, tc.want)
		}
	}
}
