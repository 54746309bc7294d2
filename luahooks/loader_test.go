package luahooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"github.com/zoobzio/attachz"
	"github.com/zoobzio/attachz/attachztest"
)

// newRecordingLoader returns a Loader whose scripts can call record(s).
func newRecordingLoader(t *testing.T) (*Loader, *[]string) {
	t.Helper()
	l := New()
	t.Cleanup(l.Close)

	seen := &[]string{}
	l.L.SetGlobal("record", l.L.NewFunction(func(L *lua.LState) int {
		*seen = append(*seen, L.CheckString(1))
		return 0
	}))
	return l, seen
}

func TestLoadFileAttachAndFire(t *testing.T) {
	l, seen := newRecordingLoader(t)

	defs, err := l.LoadFile(filepath.Join("testdata", "module.lua"))
	require.NoError(t, err)

	_, isSingle := defs[attachz.Once].(attachz.Definition[any])
	assert.True(t, isSingle)
	list, isList := defs[attachz.On].(attachz.List[any])
	require.True(t, isList)
	require.Len(t, list, 2)
	_, isDeprecated := list[1].(attachz.DeprecatedDefinition[any])
	assert.True(t, isDeprecated)

	host := attachztest.New[any]()
	defer host.Close()
	require.NoError(t, attachz.Attach[any](host, defs))

	calls := host.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "init", calls[0].Name)
	assert.Nil(t, calls[0].Options)
	assert.Equal(t, "ready", calls[1].Name)
	require.NotNil(t, calls[1].Options)
	assert.Equal(t, 10, calls[1].Options.Priority)

	ctx := context.Background()
	require.NoError(t, host.Fire(ctx, "init", map[string]any{"scene": "tavern"}))
	require.NoError(t, host.Fire(ctx, "init", map[string]any{"scene": "road"}))
	require.NoError(t, host.Fire(ctx, "ready", nil))
	require.NoError(t, host.Fire(ctx, "ready", nil))
	require.NoError(t, host.Fire(ctx, "renderChatLog", "hello"))

	assert.Equal(t, []string{"init:tavern", "ready:1", "ready:2", "chat:hello"}, *seen)

	err = host.Fire(ctx, "renderChatLog", nil)
	assert.ErrorIs(t, err, ErrCallbackFailed)
}

func TestLuaErrorBecomesCallbackError(t *testing.T) {
	l, _ := newRecordingLoader(t)

	defs, err := l.LoadString(`return { on = { name = "ready", callback = function() error("kaboom") end } }`)
	require.NoError(t, err)

	cb := attachz.Normalize(defs[attachz.On])[0].Callback
	err = cb(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestCallbackHonorsContext(t *testing.T) {
	l, _ := newRecordingLoader(t)

	defs, err := l.LoadString(`return { on = { name = "spin", callback = function() while true do end end } }`)
	require.NoError(t, err)
	cb := attachz.Normalize(defs[attachz.On])[0].Callback

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, cb(ctx, nil), context.DeadlineExceeded)

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	assert.ErrorIs(t, cb(cancelled, nil), context.Canceled)
}

func TestLoadHonorsContext(t *testing.T) {
	l := New()
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.LoadStringContext(ctx, `while true do end`)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The Loader stays usable after an interrupted load
	defs, err := l.LoadString(`return { on = { name = "ready", callback = function() end } }`)
	require.NoError(t, err)
	assert.Len(t, attachz.Normalize(defs[attachz.On]), 1)

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	_, err = l.LoadFileContext(cancelled, filepath.Join("testdata", "module.lua"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCallbackAfterClose(t *testing.T) {
	l := New()
	defs, err := l.LoadString(`return { once = { name = "init", callback = function() end } }`)
	require.NoError(t, err)

	l.Close()
	l.Close()

	cb := attachz.Normalize(defs[attachz.Once])[0].Callback
	assert.ErrorIs(t, cb(context.Background(), nil), ErrLoaderClosed)

	_, err = l.LoadString(`return {}`)
	assert.ErrorIs(t, err, ErrLoaderClosed)
}

func TestUnknownModeRejectedByAttach(t *testing.T) {
	l, _ := newRecordingLoader(t)

	defs, err := l.LoadString(`return { always = { name = "ready", callback = function() end } }`)
	require.NoError(t, err)
	require.Contains(t, defs, attachz.Mode("always"))

	host := attachztest.New[any]()
	defer host.Close()
	assert.ErrorIs(t, attachz.Attach[any](host, defs), attachz.ErrInvalidMode)
	assert.Empty(t, host.Calls())
}

func TestEmptyListRejectedByAttach(t *testing.T) {
	l, _ := newRecordingLoader(t)

	defs, err := l.LoadString(`return { on = {} }`)
	require.NoError(t, err)

	host := attachztest.New[any]()
	defer host.Close()
	assert.ErrorIs(t, attachz.Attach[any](host, defs), attachz.ErrEmptyDefinitions)
}

func TestInvalidScripts(t *testing.T) {
	cases := map[string]string{
		"not a table":         `return 42`,
		"nothing returned":    `local x = 1`,
		"numeric mode key":    `return { [1] = { name = "a", callback = function() end } }`,
		"mode not a table":    `return { on = "ready" }`,
		"missing name":        `return { on = { { callback = function() end } } }`,
		"empty name":          `return { on = { name = "", callback = function() end } }`,
		"callback not func":   `return { on = { name = "ready", callback = "nope" } }`,
		"priority not number": `return { on = { name = "ready", callback = function() end, priority = "high" } }`,
		"list item not table": `return { on = { "ready" } }`,
	}

	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			l := New()
			defer l.Close()

			_, err := l.LoadString(src)
			assert.ErrorIs(t, err, ErrInvalidScript)
		})
	}
}

func TestScriptErrors(t *testing.T) {
	l := New()
	defer l.Close()

	_, err := l.LoadString(`return {`)
	assert.Error(t, err, "syntax error")

	_, err = l.LoadString(`error("fail at load")`)
	assert.Error(t, err)

	_, err = l.LoadString(`return os.exit(1)`)
	assert.Error(t, err, "os library is not available")

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		assert.Equal(t, lua.LTNil, l.L.GetGlobal(name).Type(), "%s must not be available", name)
	}

	secret := filepath.Join(t.TempDir(), "secret.lua")
	require.NoError(t, os.WriteFile(secret, []byte(`return { on = { name = "leaked", callback = function() end } }`), 0o600))
	_, err = l.LoadString(fmt.Sprintf("return dofile(%q)", secret))
	assert.Error(t, err, "scripts cannot run other files")

	_, err = l.LoadFile(filepath.Join("testdata", "missing.lua"))
	assert.Error(t, err)
}

func TestToLua(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	assert.Equal(t, lua.LNil, toLua(L, nil))
	assert.Equal(t, lua.LBool(true), toLua(L, true))
	assert.Equal(t, lua.LNumber(3), toLua(L, 3))
	assert.Equal(t, lua.LNumber(1.5), toLua(L, 1.5))
	assert.Equal(t, lua.LString("x"), toLua(L, "x"))
	assert.Equal(t, lua.LString("{1 2}"), toLua(L, struct{ A, B int }{1, 2}))

	tbl, ok := toLua(L, map[string]any{"list": []any{"a", 2}}).(*lua.LTable)
	require.True(t, ok)
	list, ok := tbl.RawGetString("list").(*lua.LTable)
	require.True(t, ok)
	assert.Equal(t, 2, list.Len())
	assert.Equal(t, lua.LString("a"), list.RawGetInt(1))
}
