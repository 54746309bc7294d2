// Package luahooks builds hook batches from Lua scripts.
//
// A script returns a table keyed by registration mode. Each mode holds either
// one definition or a list of them:
//
//	return {
//	  once = { name = "init", callback = function(data) end },
//	  on = {
//	    { name = "ready", callback = function(data) end, priority = 5 },
//	    { name = "renderChatLog", callback = function(data) end, deprecated = true },
//	  },
//	}
//
// Scripts run in a sandboxed state with only the base, table, string and math
// libraries opened, and with the base functions that load code from files or
// strings removed. Lua callbacks are wrapped as attachz callbacks that share
// the Loader's state, so a Loader must stay open for as long as its callbacks
// may fire.
package luahooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/zoobzio/attachz"
)

var (
	// ErrInvalidScript indicates a script whose result is not a hook batch.
	ErrInvalidScript = errors.New("invalid hook script")

	// ErrLoaderClosed is returned by callbacks invoked after Close.
	ErrLoaderClosed = errors.New("lua loader is closed")

	// ErrCallbackFailed wraps the message a Lua callback returned.
	ErrCallbackFailed = errors.New("lua hook callback failed")
)

// Loader owns a Lua state and the callbacks created from it.
//
// gopher-lua states are not goroutine-safe; every entry into the state,
// including callback invocations from the host, is serialized by mu.
type Loader struct {
	L      *lua.LState
	mu     sync.Mutex
	closed bool
}

// New creates a Loader with a sandboxed Lua state.
func New() *Loader {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // opened selectively below
	})
	openSafeLibraries(L)
	return &Loader{L: L}
}

// blockedGlobals are base functions that read or compile code at run time.
var blockedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
}

// openSafeLibraries opens only libraries without filesystem or process access.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Not opened: io, os, debug, package
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
}

// LoadFile runs the script at path and converts its result to a hook batch.
// It is LoadFileContext with a background context.
func (l *Loader) LoadFile(path string) (attachz.Definitions[any], error) {
	return l.LoadFileContext(context.Background(), path)
}

// LoadFileContext runs the script at path under ctx and converts its result to
// a hook batch.
func (l *Loader) LoadFileContext(ctx context.Context, path string) (attachz.Definitions[any], error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	defs, err := l.LoadStringContext(ctx, string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// LoadString runs src and converts its result to a hook batch. It is
// LoadStringContext with a background context, so a script that never
// returns blocks the Loader forever.
func (l *Loader) LoadString(src string) (attachz.Definitions[any], error) {
	return l.LoadStringContext(context.Background(), src)
}

// LoadStringContext runs src under ctx and converts its result to a hook
// batch. Cancelling ctx stops a running script and returns ctx's error.
//
// Mode keys are passed through untouched; attachz.Attach rejects unknown ones.
func (l *Loader) LoadStringContext(ctx context.Context, src string) (attachz.Definitions[any], error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLoaderClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fn, err := l.L.LoadString(src)
	if err != nil {
		return nil, fmt.Errorf("compile script: %w", err)
	}

	l.L.SetContext(ctx)
	defer l.L.RemoveContext()

	l.L.Push(fn)
	if err := l.L.PCall(0, 1, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("run script: %w", err)
	}
	result := l.L.Get(-1)
	l.L.Pop(1)

	root, ok := result.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: script returned %s, want table", ErrInvalidScript, result.Type())
	}

	return l.batch(root)
}

// Close releases the Lua state. Callbacks created by this Loader fail with
// ErrLoaderClosed afterwards.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	l.L.Close()
}

func (l *Loader) batch(root *lua.LTable) (attachz.Definitions[any], error) {
	defs := make(attachz.Definitions[any])

	var convErr error
	root.ForEach(func(k, v lua.LValue) {
		if convErr != nil {
			return
		}

		key, ok := k.(lua.LString)
		if !ok {
			convErr = fmt.Errorf("%w: mode key %s is not a string", ErrInvalidScript, k.String())
			return
		}

		set, err := l.set(string(key), v)
		if err != nil {
			convErr = err
			return
		}
		defs[attachz.Mode(key)] = set
	})
	if convErr != nil {
		return nil, convErr
	}

	return defs, nil
}

// set converts a mode value: a table with a name field is a single
// definition, anything else is read as a list.
func (l *Loader) set(mode string, v lua.LValue) (attachz.Set[any], error) {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: %s: want table, got %s", ErrInvalidScript, mode, v.Type())
	}

	if tbl.RawGetString("name") != lua.LNil {
		return l.definition(mode, 0, tbl)
	}

	list := make(attachz.List[any], 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		item, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d]: want table", ErrInvalidScript, mode, i-1)
		}
		def, err := l.definition(mode, i-1, item)
		if err != nil {
			return nil, err
		}
		list = append(list, def)
	}
	return list, nil
}

func (l *Loader) definition(mode string, index int, tbl *lua.LTable) (attachz.Single[any], error) {
	name, ok := tbl.RawGetString("name").(lua.LString)
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %s[%d]: name must be a non-empty string", ErrInvalidScript, mode, index)
	}

	fn, ok := tbl.RawGetString("callback").(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s[%d] %s: callback must be a function", ErrInvalidScript, mode, index, string(name))
	}

	var opts *attachz.Options
	switch p := tbl.RawGetString("priority").(type) {
	case lua.LNumber:
		opts = &attachz.Options{Priority: int(p)}
	case *lua.LNilType:
	default:
		return nil, fmt.Errorf("%w: %s[%d] %s: priority must be a number", ErrInvalidScript, mode, index, string(name))
	}

	callback := l.callback(fn)
	if lua.LVAsBool(tbl.RawGetString("deprecated")) {
		return attachz.DeprecatedDefinition[any]{
			Name:     attachz.DeprecatedName(name),
			Callback: callback,
			Options:  opts,
		}, nil
	}
	return attachz.Definition[any]{
		Name:     attachz.Name(name),
		Callback: callback,
		Options:  opts,
	}, nil
}

// callback wraps a Lua function. A Lua error, or a non-empty string returned
// by the function, becomes the callback's error.
func (l *Loader) callback(fn *lua.LFunction) attachz.Callback[any] {
	return func(ctx context.Context, data any) error {
		l.mu.Lock()
		defer l.mu.Unlock()

		if l.closed {
			return ErrLoaderClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		l.L.SetContext(ctx)
		defer l.L.RemoveContext()

		if err := l.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, toLua(l.L, data)); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("lua hook: %w", err)
		}

		ret := l.L.Get(-1)
		l.L.Pop(1)

		if msg, ok := ret.(lua.LString); ok && msg != "" {
			return fmt.Errorf("%w: %s", ErrCallbackFailed, string(msg))
		}
		return nil
	}
}
