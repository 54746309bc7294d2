package manifest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/attachz"
	"github.com/zoobzio/attachz/attachztest"
)

func handlers(seen *[]string) map[string]attachz.Callback[string] {
	mk := func(id string) attachz.Callback[string] {
		return func(ctx context.Context, data string) error {
			*seen = append(*seen, id)
			return nil
		}
	}
	return map[string]attachz.Callback[string]{
		"setup":      mk("setup"),
		"greet":      mk("greet"),
		"legacyChat": mk("legacyChat"),
	}
}

func TestLoad(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "module.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "scene-tools", m.Name)
	assert.Equal(t, filepath.Join("testdata", "module.yaml"), m.Path)
	require.Contains(t, m.Hooks, "once")
	require.Contains(t, m.Hooks, "on")

	once := m.Hooks["once"]
	assert.True(t, once.Single)
	require.Len(t, once.Items, 1)
	assert.Equal(t, Entry{Name: "init", Handler: "setup"}, once.Items[0])

	on := m.Hooks["on"]
	assert.False(t, on.Single)
	require.Len(t, on.Items, 2)
	require.NotNil(t, on.Items[0].Priority)
	assert.Equal(t, 10, *on.Items[0].Priority)
	assert.True(t, on.Items[1].Deprecated)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"scalar mode":     "hooks:\n  on: ready\n",
		"empty list":      "hooks:\n  on: []\n",
		"missing name":    "hooks:\n  on: { handler: greet }\n",
		"missing handler": "hooks:\n  once: [ { name: init } ]\n",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidManifest)
		})
	}

	_, err := Parse([]byte("hooks: [\n"))
	assert.Error(t, err, "malformed YAML")
}

func TestResolveAndAttach(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "module.yaml"))
	require.NoError(t, err)

	var seen []string
	defs, err := Resolve(m, handlers(&seen))
	require.NoError(t, err)

	// Single entries stay lone definitions
	_, isSingle := defs[attachz.Once].(attachz.Definition[string])
	assert.True(t, isSingle)
	list, isList := defs[attachz.On].(attachz.List[string])
	require.True(t, isList)
	_, isDeprecated := list[1].(attachz.DeprecatedDefinition[string])
	assert.True(t, isDeprecated)

	host := attachztest.New[string]()
	defer host.Close()
	require.NoError(t, attachz.Attach[string](host, defs))

	calls := host.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, attachz.Once, calls[0].Mode)
	assert.Equal(t, "init", calls[0].Name)
	assert.Nil(t, calls[0].Options)
	assert.Equal(t, "ready", calls[1].Name)
	require.NotNil(t, calls[1].Options)
	assert.Equal(t, 10, calls[1].Options.Priority)
	assert.Equal(t, "renderChatLog", calls[2].Name)

	require.NoError(t, host.Fire(context.Background(), "init", ""))
	require.NoError(t, host.Fire(context.Background(), "renderChatLog", ""))
	assert.Equal(t, []string{"setup", "legacyChat"}, seen)
}

func TestResolveUnknownHandler(t *testing.T) {
	m, err := Parse([]byte("hooks:\n  on: { name: ready, handler: nope }\n"))
	require.NoError(t, err)

	var seen []string
	_, err = Resolve(m, handlers(&seen))
	assert.ErrorIs(t, err, ErrUnknownHandler)
}

func TestResolveKeepsUnknownModeForAttach(t *testing.T) {
	m, err := Parse([]byte("hooks:\n  always: { name: ready, handler: greet }\n"))
	require.NoError(t, err)

	var seen []string
	defs, err := Resolve(m, handlers(&seen))
	require.NoError(t, err)

	host := attachztest.New[string]()
	defer host.Close()

	err = attachz.Attach[string](host, defs)
	assert.ErrorIs(t, err, attachz.ErrInvalidMode)
	assert.Empty(t, host.Calls())
}
