package extract

import "testing"

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"&amp;&lt;&gt;&quot;&#39;&nbsp;x", `&<>"' x`},
		{"  a\n\t b  ", "a b"},
		{"a&nbsp;&nbsp; b", "a b"},
		{" ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		header, want string
	}{
		{"Yellow highlight | Location: 1,234-1,240", "1,234-1,240"},
		{"Yellow highlight | Location:&nbsp;42", "42"},
		{"Blue highlight | Page: 7", "7"},
		{"Note | Location: 1,234,", "1,234"},
		{"Yellow highlight", ""},
		{"Location: abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParseLocation(tt.header); got != tt.want {
			t.Errorf("ParseLocation(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		header, want string
	}{
		{"Yellow highlight | Location: 1", "Yellow"},
		{"  orange Highlight", "orange"},
		{"Note | Location: 1", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParseColor(tt.header); got != tt.want {
			t.Errorf("ParseColor(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestIsGenericTitle(t *testing.T) {
	for _, title := range []string{"", "Kindle", "  your notebook ", "Unknown Title"} {
		if !IsGenericTitle(title) {
			t.Errorf("expected %q to be generic", title)
		}
	}
	if IsGenericTitle("Dune") {
		t.Error("Dune should not be generic")
	}
}

func TestPairAnnotations(t *testing.T) {
	got := PairAnnotations([]string{"a", "b"}, []string{"h1", "h2", "h3"}, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(got))
	}
	if got[1].Header != "h2" || got[1].Note != "" {
		t.Errorf("unexpected pair %+v", got[1])
	}
}
