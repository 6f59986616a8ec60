package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CopiesInputs(t *testing.T) {
	body := []byte("hello")
	headers := map[string]string{"k": "v"}

	ev := New(body, headers)
	body[0] = 'j'
	headers["k"] = "changed"
	headers["extra"] = "x"

	assert.Equal(t, []byte("hello"), ev.Body)
	assert.Equal(t, map[string]string{"k": "v"}, ev.Headers)
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Event
		want bool
	}{
		{
			name: "identical",
			a:    New([]byte("x"), map[string]string{"a": "1", "b": "2"}),
			b:    New([]byte("x"), map[string]string{"b": "2", "a": "1"}),
			want: true,
		},
		{
			name: "nil and empty are equal",
			a:    Event{},
			b:    New([]byte{}, map[string]string{}),
			want: true,
		},
		{
			name: "different body",
			a:    New([]byte("x"), nil),
			b:    New([]byte("y"), nil),
			want: false,
		},
		{
			name: "different header value",
			a:    New(nil, map[string]string{"a": "1"}),
			b:    New(nil, map[string]string{"a": "2"}),
			want: false,
		},
		{
			name: "extra header",
			a:    New(nil, map[string]string{"a": "1"}),
			b:    New(nil, map[string]string{"a": "1", "b": "2"}),
			want: false,
		},
		{
			name: "same size different keys",
			a:    New(nil, map[string]string{"a": "1"}),
			b:    New(nil, map[string]string{"b": "1"}),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a))
		})
	}
}

func TestClone_IsIndependent(t *testing.T) {
	orig := New([]byte("abc"), map[string]string{"k": "v"})
	c := orig.Clone()
	require.True(t, orig.Equal(c))

	c.Body[0] = 'z'
	c.Headers["k"] = "other"
	assert.Equal(t, []byte("abc"), orig.Body)
	assert.Equal(t, "v", orig.Headers["k"])
}

func TestString_StableHeaderOrder(t *testing.T) {
	ev := New([]byte("12345"), map[string]string{"z": "26", "a": "1"})
	assert.Equal(t, "{a=1, z=26} body=5B", ev.String())
}
