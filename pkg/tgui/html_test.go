package tgui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscAndTags(t *testing.T) {
	assert.Equal(t, H("a &lt;b&gt; &amp; &#34;c&#34;"), Esc(`a <b> & "c"`))
	assert.Equal(t, H("<b>x &amp; y</b>"), B("x & y"))
	assert.Equal(t, H("<code>1&lt;2</code>"), Code("1<2"))
}

func TestLinesSkipsBlank(t *testing.T) {
	got := Lines(B("title"), "", Raw("  "), Cat(Raw("💰 "), Esc("$1 & more")))
	assert.Equal(t, H("<b>title</b>\n💰 $1 &amp; more"), got)
}

func TestTruncRunes(t *testing.T) {
	assert.Equal(t, "héllo", TruncRunes("héllo", 5))
	assert.Equal(t, "hé…", TruncRunes("héllo", 2))
	assert.Equal(t, "", TruncRunes("héllo", 0))
}
