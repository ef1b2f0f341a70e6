package chunk

import (
	"errors"
	"strings"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"defaults", 1000, 4, false},
		{"no overlap", 10, 0, false},
		{"zero size", 0, 0, true},
		{"negative overlap", 10, -1, true},
		{"overlap equals size", 10, 10, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.size, tc.overlap)
			if tc.wantErr && !errors.Is(err, ErrInvalidWindow) {
				t.Errorf("expected ErrInvalidWindow, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSplit_Empty(t *testing.T) {
	if got := Default().Split(""); len(got) != 0 {
		t.Errorf("expected no chunks, got %d", len(got))
	}
}

func TestSplit_ShortDocument(t *testing.T) {
	doc := "The sky is blue. The grass is green."
	chunks := Default().Split(doc)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != doc {
		t.Errorf("expected chunk to equal document, got %q", chunks[0].Text)
	}
}

func TestSplit_CountAndReconstruction(t *testing.T) {
	c := Default()
	for _, n := range []int{1, 999, 1000, 1001, 1996, 1997, 2500, 10000} {
		doc := makeDoc(n)
		chunks := c.Split(doc)

		want := 1
		if n > DefaultSize {
			step := DefaultSize - DefaultOverlap
			want = (n - DefaultOverlap + step - 1) / step
		}
		if len(chunks) != want {
			t.Errorf("n=%d: expected %d chunks, got %d", n, want, len(chunks))
		}

		for i, ch := range chunks {
			l := len([]rune(ch.Text))
			if l > DefaultSize {
				t.Errorf("n=%d: chunk %d has %d runes", n, i, l)
			}
			if i < len(chunks)-1 && l != DefaultSize {
				t.Errorf("n=%d: inner chunk %d has %d runes, expected %d", n, i, l, DefaultSize)
			}
			if ch.Index != i {
				t.Errorf("n=%d: chunk %d has index %d", n, i, ch.Index)
			}
		}

		if got := c.Join(chunks); got != doc {
			t.Errorf("n=%d: reconstruction mismatch", n)
		}
	}
}

func TestSplit_OverlapBoundaries(t *testing.T) {
	c, _ := New(5, 2)
	chunks := c.Split("abcdefghij")
	want := []string{"abcde", "defgh", "ghij"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, w := range want {
		if chunks[i].Text != w {
			t.Errorf("chunk %d: expected %q, got %q", i, w, chunks[i].Text)
		}
	}
	if chunks[1].Offset != 3 || chunks[2].Offset != 6 {
		t.Errorf("unexpected offsets: %d, %d", chunks[1].Offset, chunks[2].Offset)
	}
}

func TestSplit_Multibyte(t *testing.T) {
	c, _ := New(3, 1)
	doc := "日本語のテキスト"
	chunks := c.Split(doc)
	for _, ch := range chunks {
		if l := len([]rune(ch.Text)); l > 3 {
			t.Errorf("chunk %q has %d runes", ch.Text, l)
		}
	}
	if got := c.Join(chunks); got != doc {
		t.Errorf("expected %q, got %q", doc, got)
	}
}

func makeDoc(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	return sb.String()
}
