package strace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseValueComplete_Expression(t *testing.T) {
	v, diag := ParseValueComplete("0x7f1234", 0)
	require.Nil(t, diag)
	expr, ok := v.(ExpressionValue)
	require.True(t, ok)
	assert.Equal(t, "0x7f1234", expr.Text)
}

func Test_ParseValueComplete_String(t *testing.T) {
	v, diag := ParseValueComplete(`"hello\nworld"`, 0)
	require.Nil(t, diag)
	s, ok := v.(StringValue)
	require.True(t, ok)
	assert.Equal(t, "hello\nworld", string(s.Bytes))
}

func Test_ParseValueComplete_OctalEscape(t *testing.T) {
	v, diag := ParseValueComplete(`"foo \178 bar"`, 0)
	require.Nil(t, diag)
	s, ok := v.(StringValue)
	require.True(t, ok)
	assert.Equal(t, "foo \x0F8 bar", string(s.Bytes))
}

func Test_ParseValueComplete_TruncatedString(t *testing.T) {
	v, diag := ParseValueComplete(`"abc"...`, 0)
	require.Nil(t, diag)
	ts, ok := v.(TruncatedStringValue)
	require.True(t, ok)
	assert.Equal(t, "abc", string(ts.Bytes))
	bytes, ok := ToBytes(ts)
	require.True(t, ok)
	assert.Equal(t, "abc...", string(bytes))
}

func Test_ParseValueComplete_Array(t *testing.T) {
	v, diag := ParseValueComplete(`["a", "b", "c"]`, 0)
	require.Nil(t, diag)
	elems, ok := AsArray(v)
	require.True(t, ok)
	require.Len(t, elems, 3)
	b, ok := ToBytes(elems[1])
	require.True(t, ok)
	assert.Equal(t, "b", string(b))
}

func Test_ParseValueComplete_FunctionCall(t *testing.T) {
	v, diag := ParseValueComplete(`execve("/bin/ls", ["/bin/ls", "-l"], ["PATH=/usr/bin"])`, 0)
	require.Nil(t, diag)
	path, ok := ValueAtIndex(v, 0)
	require.True(t, ok)
	b, ok := ToBytes(path)
	require.True(t, ok)
	assert.Equal(t, "/bin/ls", string(b))

	argv, ok := ValueAtIndex(v, 1)
	require.True(t, ok)
	elems, ok := AsArray(argv)
	require.True(t, ok)
	assert.Len(t, elems, 2)
}

func Test_ParseValueComplete_NamedFields(t *testing.T) {
	v, diag := ParseValueComplete(`clone(child_stack=0, flags=CLONE_VM)`, 0)
	require.Nil(t, diag)
	call, ok := v.(FunctionCallValue)
	require.True(t, ok)
	require.Len(t, call.Args, 2)
	require.NotNil(t, call.Args[0].Name)
	assert.Equal(t, "child_stack", *call.Args[0].Name)
}

func Test_ParseValueComplete_Struct(t *testing.T) {
	v, diag := ParseValueComplete(`{st_mode=S_IFREG|0644, st_size=123}`, 0)
	require.Nil(t, diag)
	s, ok := v.(StructValue)
	require.True(t, ok)
	require.Len(t, s.Fields, 2)
}

func Test_ParseValueComplete_Annotated(t *testing.T) {
	v, diag := ParseValueComplete(`3<UNIX:[12345]>`, 0)
	require.Nil(t, diag)
	ann, ok := v.(AnnotatedValue)
	require.True(t, ok)
	assert.Equal(t, "UNIX:[12345]", string(ann.Annotation))
	assert.False(t, ann.Deleted)
}

func Test_ParseValueComplete_AnnotatedDeleted(t *testing.T) {
	v, diag := ParseValueComplete(`3</tmp/foo(deleted)>(deleted)`, 0)
	require.Nil(t, diag)
	ann, ok := v.(AnnotatedValue)
	require.True(t, ok)
	assert.True(t, ann.Deleted)
}

func Test_ParseValueComplete_Alternative(t *testing.T) {
	v, diag := ParseValueComplete(`EAGAIN or EWOULDBLOCK`, 0)
	require.Nil(t, diag)
	_, ok := v.(AlternativeValue)
	require.True(t, ok)
}

func Test_ParseValueComplete_BinaryOps(t *testing.T) {
	v, diag := ParseValueComplete(`PROT_READ|PROT_WRITE && O_CLOEXEC`, 0)
	require.Nil(t, diag)
	ops, ok := v.(BinaryOpsValue)
	require.True(t, ok)
	assert.Len(t, ops.Rest, 1)
	assert.Equal(t, "&&", ops.Rest[0].Op)
}

func Test_ParseValueComplete_Commented(t *testing.T) {
	v, diag := ParseValueComplete(`4 /* TCGETS */`, 0)
	require.Nil(t, diag)
	c, ok := v.(CommentedValue)
	require.True(t, ok)
	assert.Equal(t, "TCGETS", c.Text)
}

func Test_ParseValueComplete_Changed(t *testing.T) {
	v, diag := ParseValueComplete(`O_RDONLY => O_RDWR`, 0)
	require.Nil(t, diag)
	c, ok := v.(ChangedValue)
	require.True(t, ok)
	_ = c
}

func Test_ParseValueComplete_Truncated(t *testing.T) {
	v, diag := ParseValueComplete(`...`, 0)
	require.Nil(t, diag)
	_, ok := v.(TruncatedValue)
	assert.True(t, ok)
}

func Test_ParseValueComplete_RejectsTrailingData(t *testing.T) {
	_, diag := ParseValueComplete(`"a" extra`, 0)
	assert.NotNil(t, diag)
}

func Test_AsI32(t *testing.T) {
	v, diag := ParseValueComplete("42", 0)
	require.Nil(t, diag)
	n, ok := AsI32(v)
	require.True(t, ok)
	assert.Equal(t, int32(42), n)
}
