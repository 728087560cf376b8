package wire

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"testing"

	"github.com/guseggert/lambchops/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferConn struct{ bytes.Buffer }

func (b *bufferConn) Close() error { return nil }

type mapResolver map[string]reflect.Type

func (m mapResolver) Resolve(name string) (reflect.Type, error) {
	t, ok := m[name]
	if !ok {
		return nil, &ResolutionError{Type: name}
	}
	return t, nil
}

type greeting struct {
	Text  string
	Times int
}

func TestFrameRoundTrip(t *testing.T) {
	buf := &bufferConn{}
	conn := NewConn(buf)

	cuFrame, err := CodeUnitFrame(unit.New("example.com/greetings", []byte{1, 2, 3}))
	require.NoError(t, err)
	require.NoError(t, conn.WriteFrame(cuFrame))

	reqFrame, err := ObjectFrame(KindValueRequest, "greeting", greeting{Text: "hi", Times: 2})
	require.NoError(t, err)
	require.NoError(t, conn.WriteFrame(reqFrame))

	replyFrame, err := ObjectFrame(KindReply, "", "The result")
	require.NoError(t, err)
	require.NoError(t, conn.WriteFrame(replyFrame))

	assert.Zero(t, buf.Len(), "frames must be buffered until flush")
	require.NoError(t, conn.Flush())

	f, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, KindCodeUnit, f.Kind)
	u, err := DecodeCodeUnit(f)
	require.NoError(t, err)
	assert.Equal(t, "example.com/greetings", u.Name())
	assert.Equal(t, []byte{1, 2, 3}, u.Binary())

	f, err = conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, KindValueRequest, f.Kind)
	obj, err := DecodeObject(f, mapResolver{"greeting": reflect.TypeOf(greeting{})})
	require.NoError(t, err)
	assert.Equal(t, greeting{Text: "hi", Times: 2}, obj)

	f, err = conn.ReadFrame()
	require.NoError(t, err)
	obj, err = DecodeObject(f, mapResolver{})
	require.NoError(t, err)
	assert.Equal(t, "The result", obj)

	_, err = conn.ReadFrame()
	assert.Equal(t, io.EOF, err)
}

func TestDecodeObjectPointerType(t *testing.T) {
	f, err := ObjectFrame(KindFireRequest, "*greeting", &greeting{Text: "yo"})
	require.NoError(t, err)
	obj, err := DecodeObject(f, mapResolver{"*greeting": reflect.TypeOf(&greeting{})})
	require.NoError(t, err)
	assert.Equal(t, &greeting{Text: "yo"}, obj)
}

func TestUnresolvedTypeDoesNotDesyncStream(t *testing.T) {
	buf := &bufferConn{}
	conn := NewConn(buf)

	unknown, err := ObjectFrame(KindValueRequest, "never.registered", greeting{Text: "lost"})
	require.NoError(t, err)
	known, err := ObjectFrame(KindValueRequest, "greeting", greeting{Text: "found"})
	require.NoError(t, err)
	require.NoError(t, conn.Send(unknown))
	require.NoError(t, conn.Send(known))

	resolver := mapResolver{"greeting": reflect.TypeOf(greeting{})}

	f, err := conn.ReadFrame()
	require.NoError(t, err)
	_, err = DecodeObject(f, resolver)
	require.ErrorIs(t, err, ErrUnresolved)
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "never.registered", resErr.Type)

	f, err = conn.ReadFrame()
	require.NoError(t, err)
	obj, err := DecodeObject(f, resolver)
	require.NoError(t, err)
	assert.Equal(t, greeting{Text: "found"}, obj)
}

func TestDecodeInto(t *testing.T) {
	f, err := ObjectFrame(KindReply, "", "The result")
	require.NoError(t, err)

	var s string
	require.NoError(t, DecodeInto(f, &s))
	assert.Equal(t, "The result", s)

	var n int
	err = DecodeInto(f, &n)
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestTruncatedFrame(t *testing.T) {
	full := &bufferConn{}
	f, err := ObjectFrame(KindObject, "", "some payload")
	require.NoError(t, err)
	require.NoError(t, NewConn(full).Send(f))

	truncated := &bufferConn{}
	truncated.Write(full.Bytes()[:full.Len()-3])

	_, err = NewConn(truncated).ReadFrame()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeCodeUnitErrors(t *testing.T) {
	_, err := DecodeCodeUnit(Frame{Kind: KindObject})
	assert.Error(t, err)

	f, err := ObjectFrame(KindCodeUnit, "", codeUnitBody{})
	require.NoError(t, err)
	_, err = DecodeCodeUnit(f)
	assert.ErrorContains(t, err, "no name")
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindCodeUnit:     "CodeUnit",
		KindValueRequest: "ValueRequest",
		KindFireRequest:  "FireRequest",
		KindReply:        "Reply",
		KindObject:       "Object",
		Kind(42):         "Kind(42)",
	}
	for k, exp := range cases {
		t.Run(exp, func(t *testing.T) {
			assert.Equal(t, exp, k.String())
			assert.Equal(t, exp, fmt.Sprint(k))
		})
	}
}
