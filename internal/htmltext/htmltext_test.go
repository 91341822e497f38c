package htmltext

import "testing"

func TestStrip_TagsAndEntities(t *testing.T) {
	got := Strip(`<b>x</b> &lt; y&nbsp;&amp; z<!-- note -->`)
	if got != "x < y & z" {
		t.Errorf("Strip = %q", got)
	}
}

func TestStrip_DropsStyleAndScript(t *testing.T) {
	got := Strip("a<style>.c{}</style>b<script>alert(1)</script>c")
	if got != "abc" {
		t.Errorf("Strip = %q, want %q", got, "abc")
	}
}

func TestLatexSource_LineBreaks(t *testing.T) {
	got := LatexSource(`a<br>b<BR />c<div>d</div>`)
	if got != "a\nb\nc\nd" {
		t.Errorf("LatexSource = %q", got)
	}
}

func TestLatexSource_PlainUnchanged(t *testing.T) {
	src := `\frac{1}{2}`
	if got := LatexSource(src); got != src {
		t.Errorf("LatexSource = %q, want %q", got, src)
	}
}

func TestEscape(t *testing.T) {
	if got := Escape(`<a & "b">`); got != "&lt;a &amp; &#34;b&#34;&gt;" {
		t.Errorf("Escape = %q", got)
	}
}
