package closure

import (
	"context"
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/guseggert/lambchops/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greet struct{ Name string }

func (g greet) Call(ctx context.Context) (any, error) { return "hello " + g.Name, nil }

type shout struct {
	Text   string
	hidden int
}

func (s *shout) Run(ctx context.Context) error { return nil }

type both struct{}

func (both) Call(ctx context.Context) (any, error) { return nil, nil }
func (both) Run(ctx context.Context) error         { return nil }

type point struct{ X, Y int }

const pkg = "github.com/guseggert/lambchops/closure"

func TestRegister(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(greet{}, &shout{}, both{}))
	require.NoError(t, c.RegisterBuiltin(point{}))

	cases := []struct {
		name    string
		typ     reflect.Type
		expName string
		expCap  Capability
		builtin bool
	}{
		{name: "value receiver callable", typ: reflect.TypeOf(greet{}), expName: pkg + ".greet", expCap: CapabilityCompute},
		{name: "pointer runnable", typ: reflect.TypeOf(&shout{}), expName: "*" + pkg + ".shout", expCap: CapabilityExecute},
		{name: "both capabilities", typ: reflect.TypeOf(both{}), expName: pkg + ".both", expCap: CapabilityCompute | CapabilityExecute},
		{name: "builtin value", typ: reflect.TypeOf(point{}), expName: pkg + ".point", expCap: CapabilityNone, builtin: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, ok := c.Lookup(tc.typ)
			require.True(t, ok)
			assert.Equal(t, tc.expName, e.Name)
			assert.Equal(t, pkg, e.Unit)
			assert.Equal(t, tc.expCap, e.Capability)
			assert.Equal(t, tc.builtin, e.Builtin)

			byName, ok := c.LookupName(tc.expName)
			require.True(t, ok)
			assert.Same(t, e, byName)
		})
	}

	_, ok := c.Builtin(pkg + ".greet")
	assert.False(t, ok)
	_, ok = c.Builtin(pkg + ".point")
	assert.True(t, ok)
}

func TestRegisterErrors(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(greet{}))

	assert.ErrorContains(t, c.Register(greet{}), "already registered")
	assert.ErrorContains(t, c.Register(nil), "nil")
	assert.ErrorContains(t, c.Register(func() {}), "closures must be named types")
	assert.ErrorContains(t, c.Register(struct{ A int }{}), "unnamed type")
	assert.ErrorContains(t, c.RegisterUnit("", point{}), "empty unit name")
}

func TestRegisterUnit(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.RegisterUnit("greetings", greet{}, &shout{}))
	require.NoError(t, c.Register(both{}))

	assert.Equal(t, []string{pkg, "greetings"}, c.Units())
	entries := c.Unit("greetings")
	require.Len(t, entries, 2)
	assert.Equal(t, "*"+pkg+".shout", entries[0].Name)
	assert.Equal(t, pkg+".greet", entries[1].Name)
}

func TestImageLink(t *testing.T) {
	client := NewCatalog()
	require.NoError(t, client.Register(greet{}, &shout{}))
	server := NewCatalog()
	require.NoError(t, server.Register(greet{}, &shout{}))

	b, err := client.Image(pkg)
	require.NoError(t, err)

	entries, err := server.Link(unit.New(pkg, b))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, reflect.TypeOf(&shout{}), entries[0].Type)
	assert.Equal(t, reflect.TypeOf(greet{}), entries[1].Type)
}

func TestImageSkipsBuiltins(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.RegisterBuiltin(point{}))
	_, err := c.Image(pkg)
	assert.ErrorContains(t, err, "no shippable types")

	_, err = c.Image("nope")
	assert.Error(t, err)
}

func TestLinkIncompatible(t *testing.T) {
	client := NewCatalog()
	require.NoError(t, client.Register(greet{}))
	b, err := client.Image(pkg)
	require.NoError(t, err)

	t.Run("unit name mismatch", func(t *testing.T) {
		_, err := client.Link(unit.New("other", b))
		assert.ErrorIs(t, err, ErrIncompatible)
	})

	t.Run("type missing from build", func(t *testing.T) {
		_, err := NewCatalog().Link(unit.New(pkg, b))
		assert.ErrorIs(t, err, ErrIncompatible)
	})

	t.Run("type in another unit", func(t *testing.T) {
		server := NewCatalog()
		require.NoError(t, server.RegisterUnit("elsewhere", greet{}))
		_, err := server.Link(unit.New(pkg, b))
		assert.ErrorIs(t, err, ErrIncompatible)
	})

	t.Run("layout mismatch", func(t *testing.T) {
		var img image
		require.NoError(t, cbor.Unmarshal(b, &img))
		img.Types[0].Layout = "struct{Name int;}"
		tampered, err := imageEncMode.Marshal(img)
		require.NoError(t, err)

		_, err = client.Link(unit.New(pkg, tampered))
		assert.ErrorIs(t, err, ErrIncompatible)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := client.Link(unit.New(pkg, []byte{0xff, 0x00}))
		assert.Error(t, err)
	})
}

func TestLayoutIgnoresUnexportedFields(t *testing.T) {
	assert.Equal(t, "*struct{Text string;}", layoutOf(reflect.TypeOf(&shout{})))
	assert.Equal(t, "struct{X int;Y int;}", layoutOf(reflect.TypeOf(point{})))
}

func TestIsStandard(t *testing.T) {
	assert.True(t, IsStandard(""))
	assert.True(t, IsStandard("time"))
	assert.True(t, IsStandard("net/http"))
	assert.False(t, IsStandard("github.com/guseggert/lambchops/ops"))
	assert.False(t, IsStandard("example.com"))
}

func TestNotImplementedError(t *testing.T) {
	err := error(&NotImplementedError{Type: reflect.TypeOf(point{})})
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.Equal(t, "NYI: sending over type closure.point", err.Error())
}
