package utils

import "testing"

func TestSanitizeText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Photoshop 2023 安装包.zip", "Photoshop 2023 安装包.zip"},
		{"<script>alert(1)</script>clip", "clip"},
		{"<b>bold</b> name", "bold name"},
	}
	for _, tc := range cases {
		if got := SanitizeText(tc.in); got != tc.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
