package domain

import "testing"

func TestNewReference(t *testing.T) {
	tests := []struct {
		name       string
		sourcePath string
		page       int
		want       string
	}{
		{"full path", "/data/temp_uploads/w22-manual.pdf", 12, "Source: w22-manual.pdf (Page 12)"},
		{"bare name", "catalog.pdf", 1, "Source: catalog.pdf (Page 1)"},
		{"missing source", "", 3, "Source: Manual (Page 3)"},
		{"missing page", "catalog.pdf", 0, "Source: catalog.pdf (Page N/A)"},
		{"all missing", "", 0, "Source: Manual (Page N/A)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := NewReference(tt.sourcePath, tt.page)
			if got := ref.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnswerReferenceStrings_Order(t *testing.T) {
	a := Answer{
		Text: "answer",
		References: []Reference{
			NewReference("m.pdf", 2),
			NewReference("m.pdf", 5),
			NewReference("m.pdf", 1),
		},
	}
	got := a.ReferenceStrings()
	want := []string{
		"Source: m.pdf (Page 2)",
		"Source: m.pdf (Page 5)",
		"Source: m.pdf (Page 1)",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d refs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ref[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
