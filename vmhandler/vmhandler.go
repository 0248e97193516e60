package vmhandler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/usagestats/usagestats/charts"
	"github.com/usagestats/usagestats/logger"
	"github.com/usagestats/usagestats/moduleloader"
)

const transformVar = "__usagestatsTransform"

var ErrScript = errors.New("transform script failed")

// VMPool hands out goja runtimes; a runtime is used by one goroutine at a time.
type VMPool struct {
	pool chan *goja.Runtime
	log  logger.Logger
}

func NewVMPool(size int, log logger.Logger) (*VMPool, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid VM pool size %d", size)
	}
	p := &VMPool{pool: make(chan *goja.Runtime, size), log: log}
	for i := 0; i < size; i++ {
		p.pool <- p.newVM()
	}
	return p, nil
}

func (p *VMPool) newVM() *goja.Runtime {
	vm := goja.New()
	moduleloader.SetupConsoleModule(vm, p.log)
	vm.Set("require", moduleloader.SetupRequire(p.log))
	return vm
}

// Get returns a pooled runtime or a fresh one when the pool is drained.
func (p *VMPool) Get() *goja.Runtime {
	select {
	case vm := <-p.pool:
		return vm
	default:
		return p.newVM()
	}
}

func (p *VMPool) Put(vm *goja.Runtime) {
	select {
	case p.pool <- vm:
	default:
	}
}

// BuildScript lowers TypeScript/modern JS transform source to code goja runs.
// The source must be a single function expression taking a row.
func BuildScript(source string) (string, error) {
	wrapped := fmt.Sprintf("var %s = (%s);", transformVar, strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(source), ";")))
	result := api.Transform(wrapped, api.TransformOptions{
		Loader: api.LoaderTS,
		Target: api.ES2015,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("%w: esbuild errors: %v", ErrScript, result.Errors[0].Text)
	}
	return string(result.Code), nil
}

// CompileTransform builds the source once and returns a RowTransform that runs on pooled VMs.
func (p *VMPool) CompileTransform(name, source string) (charts.RowTransform, error) {
	code, err := BuildScript(source)
	if err != nil {
		return nil, err
	}
	program, err := goja.Compile(name+".js", code, false)
	if err != nil {
		return nil, fmt.Errorf("%w: compile %s: %v", ErrScript, name, err)
	}

	return func(row charts.Row) (charts.Row, error) {
		vm := p.Get()
		defer p.Put(vm)
		return ExecuteTransform(vm, program, row)
	}, nil
}

// ExecuteTransform runs program on vm and applies the resulting function to a copy of row.
func ExecuteTransform(vm *goja.Runtime, program *goja.Program, row charts.Row) (out charts.Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrScript, r)
		}
	}()

	if _, err := vm.RunProgram(program); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	fn, ok := goja.AssertFunction(vm.Get(transformVar))
	if !ok {
		return nil, fmt.Errorf("%w: script does not evaluate to a function", ErrScript)
	}

	in := make(map[string]interface{}, len(row))
	for k, v := range row {
		in[k] = v
	}

	res, err := fn(goja.Undefined(), vm.ToValue(in))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}

	exported, ok := res.Export().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: script returned %T, want an object", ErrScript, res.Export())
	}
	return normalizeRow(exported), nil
}

// normalizeRow makes script output look like decoded JSON (numbers as float64).
func normalizeRow(m map[string]interface{}) charts.Row {
	out := make(charts.Row, len(m))
	for k, v := range m {
		switch n := v.(type) {
		case int64:
			out[k] = float64(n)
		case int:
			out[k] = float64(n)
		case int32:
			out[k] = float64(n)
		default:
			out[k] = v
		}
	}
	return out
}
