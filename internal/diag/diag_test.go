package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_New_ClampsSpanToSource(t *testing.T) {
	d := New("abc", "bad span", -5, 100)
	assert.Equal(t, 0, d.Span.Start)
	assert.Equal(t, 3, d.Span.End)
}

func Test_New_EndBeforeStartClampsToStart(t *testing.T) {
	d := New("abc", "inverted", 2, 1)
	assert.Equal(t, 2, d.Span.Start)
	assert.Equal(t, 2, d.Span.End)
}

func Test_At_PointsAtSingleByte(t *testing.T) {
	d := At("abcdef", "bad byte", 2)
	assert.Equal(t, 2, d.Span.Start)
	assert.Equal(t, 3, d.Span.End)
}

func Test_Error_ReturnsMessage(t *testing.T) {
	d := At("abc", "oops", 0)
	assert.Equal(t, "oops", d.Error())
}

func Test_Render_UnderlinesSpan(t *testing.T) {
	d := New(`foo(bar`, "unterminated call", 3, 7)
	out := d.Render("input.strace", 5)

	assert.Contains(t, out, "input.strace:5: warning: unterminated call")
	assert.Contains(t, out, "foo(bar")
	assert.Contains(t, out, "^^^^")
}

func Test_Render_ZeroWidthSpanStillUnderlinesOneChar(t *testing.T) {
	d := At("x", "bad", 0)
	out := d.Render("f", 1)
	assert.Contains(t, out, "^")
}
