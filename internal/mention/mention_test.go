package mention

import (
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"none", "no mentions here", nil},
		{"single", "ping @bob about this", []string{"bob"}},
		{"multiple ordered", "@alice then @bob then @carol", []string{"alice", "bob", "carol"}},
		{"duplicates preserved", "@bob @bob", []string{"bob", "bob"}},
		{"underscore and digits", "cc @qa_lead2", []string{"qa_lead2"}},
		{"stops at punctuation", "thanks @alice!", []string{"alice"}},
		{"email yields domain token", "reach me at user@example.com", []string{"example"}},
		{"bare at", "2 @ 3pm", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Extract(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Extract(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestHighlight(t *testing.T) {
	got := Highlight("fix assigned to @bob, cc @alice")
	want := `fix assigned to <span class="mention">@bob</span>, cc <span class="mention">@alice</span>`
	if got != want {
		t.Fatalf("Highlight = %q, want %q", got, want)
	}
}

func TestContains(t *testing.T) {
	if !Contains("ping @Bob", "bob") {
		t.Fatal("expected case-insensitive match")
	}
	if Contains("ping @bobby", "bob") {
		t.Fatal("token must match whole name")
	}
}
