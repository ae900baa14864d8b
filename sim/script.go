package sim

import (
	"fmt"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/milk9111/swarm/prefabs"
)

// scriptRuntime runs a tengo script exposing update(engine, state). State is a
// map owned by the runtime and kept between ticks.
type scriptRuntime struct {
	path      string
	compiled  *tengo.Compiled
	stateData *tengo.Map
}

const updateDispatchScript = `
update(__engine, __state)
`

func loadScript(path string) (*scriptRuntime, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sim: empty script path")
	}
	src, err := prefabs.LoadScript(path)
	if err != nil {
		return nil, fmt.Errorf("sim: load script %s: %w", path, err)
	}
	return compileScript(path, src)
}

func compileScript(path string, src []byte) (*scriptRuntime, error) {
	full := string(src) + "\n" + updateDispatchScript
	script := tengo.NewScript([]byte(full))
	_ = script.Add("__engine", map[string]any{})
	_ = script.Add("__state", map[string]any{})
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("sim: compile script %s: %w", path, err)
	}
	return &scriptRuntime{
		path:      path,
		compiled:  compiled,
		stateData: &tengo.Map{Value: map[string]tengo.Object{}},
	}, nil
}

// run calls the script's update. A runtime panic inside the VM, such as an
// integer division by zero, comes back as an error.
func (rt *scriptRuntime) run(engine *tengo.ImmutableMap) (err error) {
	if rt == nil || rt.compiled == nil {
		return fmt.Errorf("nil script runtime")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sim: script %s panicked: %v", rt.path, r)
		}
	}()
	if err := rt.compiled.Set("__engine", engine); err != nil {
		return err
	}
	if err := rt.compiled.Set("__state", rt.stateData); err != nil {
		return err
	}
	return rt.compiled.Run()
}

// state exposes a script-side value, mostly for tests and debugging.
func (rt *scriptRuntime) state(key string) any {
	return objectToAny(rt.stateData.Value[key])
}

func vecObject(x, z float64) *tengo.Array {
	return &tengo.Array{Value: []tengo.Object{&tengo.Float{Value: x}, &tengo.Float{Value: z}}}
}

func floatArgs(args []tengo.Object, n int) ([]float64, bool) {
	if len(args) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, ok := tengo.ToFloat64(args[i])
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}

func objectToAny(obj tengo.Object) any {
	if obj == nil {
		return nil
	}

	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	case *tengo.Int:
		return int(v.Value)
	case *tengo.Float:
		return v.Value
	case *tengo.Bool:
		return !v.IsFalsy()
	case *tengo.Array:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, objectToAny(item))
		}
		return out
	case *tengo.Map:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.Undefined:
		return nil
	default:
		return v.String()
	}
}
