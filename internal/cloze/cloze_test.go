package cloze

import (
	"strings"
	"testing"

	"github.com/starford/mediacheck/internal/models"
)

func TestStandard_Unchanged(t *testing.T) {
	in := "{{c1::not expanded}}"
	got := Standard{}.Expand(in)
	if len(got) != 1 || got[0] != in {
		t.Errorf("Expand = %v", got)
	}
}

func TestCloze_OneVariantPerIndex(t *testing.T) {
	in := "{{c1::a}} {{c2::b::hint}} {{c1::c}} {{c3::d}}"
	got := Cloze{}.Expand(in)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (%v)", len(got), got)
	}
	if got[0] != "<span class=cloze>a</span> b <span class=cloze>c</span> d" {
		t.Errorf("variant 1 = %q", got[0])
	}
	if got[1] != "a <span class=cloze>b</span> c d" {
		t.Errorf("variant 2 = %q", got[1])
	}
	if got[2] != "a b c <span class=cloze>d</span>" {
		t.Errorf("variant 3 = %q", got[2])
	}
}

func TestCloze_NoDeletions(t *testing.T) {
	in := "plain {{c text"
	got := Cloze{}.Expand(in)
	if len(got) != 1 || got[0] != in {
		t.Errorf("Expand = %v", got)
	}
}

func TestCloze_KeepsLatexAndMedia(t *testing.T) {
	in := `{{c1::[$]x^2[/$]}} <img src="a.png"> {{c2::[sound:b.mp3]}}`
	for i, v := range (Cloze{}).Expand(in) {
		if !strings.Contains(v, "[$]x^2[/$]") || !strings.Contains(v, "[sound:b.mp3]") || !strings.Contains(v, `src="a.png"`) {
			t.Errorf("variant %d lost content: %q", i+1, v)
		}
	}
}

func TestCloze_MultilineDeletion(t *testing.T) {
	got := Cloze{}.Expand("{{c1::line one\nline two}}")
	if len(got) != 1 || got[0] != "<span class=cloze>line one\nline two</span>" {
		t.Errorf("Expand = %q", got)
	}
}

func TestIndices_Sorted(t *testing.T) {
	got := Indices("{{c10::x}} {{c2::y}} {{c2::z}}")
	if len(got) != 2 || got[0] != 2 || got[1] != 10 {
		t.Errorf("Indices = %v, want [2 10]", got)
	}
}

func TestFor(t *testing.T) {
	if _, ok := For(models.KindCloze).(Cloze); !ok {
		t.Error("cloze kind should select Cloze")
	}
	if _, ok := For(models.KindStandard).(Standard); !ok {
		t.Error("standard kind should select Standard")
	}
	if _, ok := For("").(Standard); !ok {
		t.Error("empty kind should select Standard")
	}
}
