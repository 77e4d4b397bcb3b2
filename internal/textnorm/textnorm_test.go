package textnorm

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"Empty", "", ""},
		{"Plain", "Widget", "Widget"},
		{"CollapseWhitespace", "a  b\t\tc\r\nd", "a b c d"},
		{"LeadingTrailing", "  Widget  ", "Widget"},
		{"ControlChars", "Wid\x00get\x07", "Widget"},
		{"ZeroWidth", "Wid​get", "Widget"},
		{"NFC", "éclair", "éclair"},
		{"Korean", "  상품명   테스트  ", "상품명 테스트"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
