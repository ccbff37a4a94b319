package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
)

type stubModule struct{ name string }

func TestRegistryNewAndMetadata(t *testing.T) {
	reg := NewRegistry[*stubModule]()
	spec := NewSpec("stub", "0.1")

	reg.Register(Metadata{Spec: spec, Description: "a stub", IsStateless: true}, func(s Settings) (*stubModule, error) {
		return &stubModule{name: s["name"]}, nil
	})

	instance, err := reg.New(spec, Settings{"name": "demo"})
	require.NoError(t, err)
	assert.Equal(t, "demo", instance.name)

	meta, ok := reg.Metadata(spec)
	require.True(t, ok)
	assert.Equal(t, "a stub", meta.Description)

	metas := reg.Metadatas()
	require.Len(t, metas, 1)
}

func TestRegistryUnknownModule(t *testing.T) {
	reg := NewRegistry[*stubModule]()

	_, err := reg.New(NewSpec("missing", "1"), nil)
	require.Error(t, err)
	assert.Equal(t, lkerror.NotFound, lkerror.KindOf(err))
}

func TestRegistryBadSettings(t *testing.T) {
	reg := NewRegistry[*stubModule]()
	spec := NewSpec("stub", "0.1")

	reg.Register(Metadata{Spec: spec}, func(s Settings) (*stubModule, error) {
		return nil, assertErr
	})

	_, err := reg.New(spec, nil)
	require.Error(t, err)
	assert.Equal(t, lkerror.InvalidParameter, lkerror.KindOf(err))
}

func TestRegistryDuplicatePanics(t *testing.T) {
	reg := NewRegistry[*stubModule]()
	spec := NewSpec("stub", "0.1")
	factory := func(s Settings) (*stubModule, error) { return &stubModule{}, nil }

	reg.Register(Metadata{Spec: spec}, factory)

	assert.Panics(t, func() {
		reg.Register(Metadata{Spec: spec}, factory)
	})
}

func TestRegistryChildrenOf(t *testing.T) {
	reg := NewRegistry[*stubModule]()
	parent := NewSpec("docker-containers", "1")
	child := NewSpec("docker-image-updates", "1")

	reg.Register(Metadata{Spec: parent}, func(s Settings) (*stubModule, error) { return &stubModule{}, nil })
	reg.Register(Metadata{Spec: child, ParentModule: &parent}, func(s Settings) (*stubModule, error) { return &stubModule{}, nil })

	children := reg.ChildrenOf(parent)
	require.Len(t, children, 1)
	assert.Equal(t, child, children[0])
}

var assertErr = lkerror.New(lkerror.InvalidParameter, "bad")
