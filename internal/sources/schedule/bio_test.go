package schedule

import "testing"

func TestCleanBio(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "paragraphs", in: "<p>First</p><p>Second</p>", want: "First\nSecond"},
		{name: "entities", in: "Rock &amp; Roll", want: "Rock & Roll"},
		{name: "escaped newlines", in: `Line one\r\nLine two`, want: "Line one\nLine two"},
		{name: "quoted", in: `"<b>Bold</b> claim"`, want: "Bold claim"},
		{name: "escaped closing tag", in: `<p>Hi<\/p>`, want: "Hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanBio(tt.in); got != tt.want {
				t.Errorf("cleanBio(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
