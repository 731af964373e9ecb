package executor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"

	"github.com/siderealworks/meridian/pkg/api"
)

type (
	// LuaRunner executes sandboxed step scripts in pooled Lua states. The
	// script sees two locals: params (the step's parameters) and shared
	// (the workflow context); its return value becomes the step output
	LuaRunner struct {
		statePool chan *lua.State
		scripts   sync.Map
	}

	compiledLua struct {
		bytecode []byte
	}
)

const (
	luaStatePoolSize    = 10
	luaGlobalTableIndex = -2
	luaArrayTableIndex  = -3
	luaMapTableIndex    = -3
	luaScriptPrelude    = "local params, shared = select(1, ...), select(2, ...)"
	luaGlobalTableName  = "_G"
)

var (
	ErrLuaScriptEmpty = errors.New("lua script empty")
	ErrLuaLoad        = errors.New("lua load error")
	ErrLuaExecution   = errors.New("lua execution error")
)

// luaExclude lists globals removed from the sandbox before any script runs
var luaExclude = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

var _ Executor = (*LuaRunner)(nil)

// NewLuaRunner creates a sandboxed Lua execution environment with a state
// pool for efficient script reuse
func NewLuaRunner() *LuaRunner {
	return &LuaRunner{
		statePool: make(chan *lua.State, luaStatePoolSize),
	}
}

// Execute compiles (or reuses) the script in params and runs it against the
// step parameters and shared context
func (r *LuaRunner) Execute(
	ctx context.Context, params, shared api.Args,
) (*Result, error) {
	script := params.GetString("script", "")
	if script == "" {
		return nil, ErrLuaScriptEmpty
	}

	c, err := r.compileCached(script)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	output, err := r.run(c, params, shared)
	if err != nil {
		return Fail(err.Error()), nil
	}
	return Succeed(output), nil
}

// Validate checks whether a script compiles without running it
func (r *LuaRunner) Validate(script string) error {
	_, err := r.compile(script)
	return err
}

func (r *LuaRunner) compileCached(script string) (*compiledLua, error) {
	key := scriptCacheKey(script)
	if val, ok := r.scripts.Load(key); ok {
		return val.(*compiledLua), nil
	}

	c, err := r.compile(script)
	if err == nil {
		r.scripts.Store(key, c)
	}
	return c, err
}

func (r *LuaRunner) compile(script string) (*compiledLua, error) {
	src := strings.Join([]string{luaScriptPrelude, script}, "\n")

	L := lua.NewState()
	r.setupSandbox(L)

	if err := lua.LoadString(L, src); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := L.Dump(&buf); err != nil {
		return nil, err
	}

	return &compiledLua{bytecode: buf.Bytes()}, nil
}

func (r *LuaRunner) run(
	c *compiledLua, params, shared api.Args,
) (api.Args, error) {
	L := r.getState()
	defer r.returnState(L)

	r.setupSandbox(L)
	if err := L.Load(bytes.NewReader(c.bytecode), "chunk", "b"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	pushLuaMap(L, map[string]any(params))
	pushLuaMap(L, map[string]any(shared))

	if err := L.ProtectedCall(2, 1, 0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaExecution, err)
	}

	var result api.Args
	if L.IsTable(-1) {
		result = luaTableToMap(L, -1)
	} else {
		result = api.Args{"result": luaToGo(L, -1)}
	}
	L.Pop(1)

	return result, nil
}

func (r *LuaRunner) setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	L.Global(luaGlobalTableName)
	for _, name := range luaExclude {
		L.PushNil()
		L.SetField(luaGlobalTableIndex, name)
	}
	L.Pop(1)
}

func (r *LuaRunner) getState() *lua.State {
	select {
	case L := <-r.statePool:
		return L
	default:
		return lua.NewState()
	}
}

func (r *LuaRunner) returnState(L *lua.State) {
	L.SetTop(0)

	select {
	case r.statePool <- L:
	default:
	}
}

func scriptCacheKey(script string) string {
	hash := sha256.Sum256([]byte(script))
	return hex.EncodeToString(hash[:])
}

func goToLua(L *lua.State, value any) {
	switch v := value.(type) {
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case int:
		L.PushInteger(v)
	case int64:
		L.PushInteger(int(v))
	case float64:
		L.PushNumber(v)
	case []any:
		pushLuaArray(L, v)
	case map[string]any:
		pushLuaMap(L, v)
	case api.Args:
		pushLuaMap(L, v)
	case nil:
		L.PushNil()
	default:
		L.PushString(fmt.Sprintf("%v", v))
	}
}

func pushLuaArray(L *lua.State, arr []any) {
	L.CreateTable(len(arr), 0)
	for i, item := range arr {
		L.PushInteger(i + 1)
		goToLua(L, item)
		L.SetTable(luaArrayTableIndex)
	}
}

func pushLuaMap(L *lua.State, m map[string]any) {
	L.CreateTable(0, len(m))
	for k, val := range m {
		L.PushString(k)
		goToLua(L, val)
		L.SetTable(luaMapTableIndex)
	}
}

func luaNumberToGo(L *lua.State, index int) any {
	num, _ := L.ToNumber(index)
	if num == float64(int(num)) {
		return int(num)
	}
	return num
}

func luaToGo(L *lua.State, index int) any {
	switch {
	case L.IsNil(index):
		return nil
	case L.IsBoolean(index):
		return L.ToBoolean(index)
	case L.IsNumber(index):
		return luaNumberToGo(L, index)
	case L.IsString(index):
		s, _ := L.ToString(index)
		return s
	case L.IsTable(index):
		return luaTableToAny(L, index)
	default:
		return nil
	}
}

func luaTableToMap(L *lua.State, index int) api.Args {
	result := api.Args{}

	L.PushNil()
	for L.Next(index - 1) {
		if L.TypeOf(-2) == lua.TypeString {
			key, _ := L.ToString(-2)
			result[key] = luaToGo(L, -1)
		}
		L.Pop(1)
	}

	return result
}

func luaTableToAny(L *lua.State, index int) any {
	isArray := true
	length := 0

	L.PushNil()
	for L.Next(index - 1) {
		if !L.IsNumber(-2) {
			isArray = false
			// abandoning iteration mid-table: both the key and the
			// value are still on the stack
			L.Pop(2)
			break
		}
		length++
		L.Pop(1)
	}

	if isArray && length > 0 {
		return convertLuaArray(L, index, length)
	}

	result := map[string]any{}
	L.PushNil()
	for L.Next(index - 1) {
		// never ToString a numeric key: the in-place conversion would
		// corrupt the Next traversal
		var key string
		if L.IsNumber(-2) {
			key = fmt.Sprintf("%v", luaNumberToGo(L, -2))
		} else if s, ok := L.ToString(-2); ok {
			key = s
		} else {
			key = fmt.Sprintf("%v", luaToGo(L, -2))
		}
		result[key] = luaToGo(L, -1)
		L.Pop(1)
	}

	return result
}

func convertLuaArray(L *lua.State, index, length int) []any {
	arr := make([]any, length)
	absIndex := index
	if index < 0 {
		absIndex = L.Top() + index + 1
	}
	for i := 1; i <= length; i++ {
		L.RawGetInt(absIndex, i)
		arr[i-1] = luaToGo(L, -1)
		L.Pop(1)
	}
	return arr
}
