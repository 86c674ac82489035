package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single bundle execution
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when a bundle runs longer than the timeout
var ErrTimeout = errors.New("execution timeout")

// Executor runs emitted bundles in an embedded JavaScript VM
type Executor struct {
	stdout         io.Writer
	stderr         io.Writer
	defaultTimeout time.Duration
}

// Option configures an Executor
type Option func(*Executor)

// WithOutput sets where console.log and console.info are written
func WithOutput(w io.Writer) Option {
	return func(e *Executor) {
		e.stdout = w
	}
}

// WithErrorOutput sets where console.warn and console.error are written
func WithErrorOutput(w io.Writer) Option {
	return func(e *Executor) {
		e.stderr = w
	}
}

// WithTimeout sets the default timeout
func WithTimeout(timeout time.Duration) Option {
	return func(e *Executor) {
		if timeout > 0 {
			e.defaultTimeout = timeout
		}
	}
}

// NewExecutor creates an executor writing console output to stdout and stderr
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		stdout:         os.Stdout,
		stderr:         os.Stderr,
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecutionResult describes one bundle run
type ExecutionResult struct {
	// Exports is module.exports after the run; set by cjs bundles
	Exports    any   `json:"exports,omitempty"`
	DurationMs int64 `json:"duration_ms"`
}

// Execute runs code as a script named name. Uncaught exceptions, including
// the loader's "Cannot find module" error, are returned as errors.
func (e *Executor) Execute(ctx context.Context, name, code string) (*ExecutionResult, error) {
	start := time.Now()

	execCtx, cancel := context.WithTimeout(ctx, e.defaultTimeout)
	defer cancel()

	vm := goja.New()
	module, err := e.setupGlobals(vm)
	if err != nil {
		return nil, fmt.Errorf("failed to set up runtime globals: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-execCtx.Done():
			vm.Interrupt(execCtx.Err())
		case <-done:
		}
	}()

	_, runErr := vm.RunScript(name, code)
	result := &ExecutionResult{DurationMs: time.Since(start).Milliseconds()}

	if runErr != nil {
		var interrupted *goja.InterruptedError
		if errors.As(runErr, &interrupted) {
			if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
				log.Warn().
					Str("name", name).
					Int64("timeout_ms", e.defaultTimeout.Milliseconds()).
					Msg("Execution timeout")
				return result, fmt.Errorf("%w after %v", ErrTimeout, e.defaultTimeout)
			}
			return result, fmt.Errorf("execution cancelled: %w", execCtx.Err())
		}

		var exception *goja.Exception
		if errors.As(runErr, &exception) && exception.Value() != nil {
			return result, fmt.Errorf("uncaught exception: %s", exception.Value().String())
		}
		return result, fmt.Errorf("execution failed: %w", runErr)
	}

	if exports := module.Get("exports"); exports != nil && !goja.IsUndefined(exports) {
		result.Exports = exports.Export()
	}
	return result, nil
}

// setupGlobals installs console plus a CommonJS module object
func (e *Executor) setupGlobals(vm *goja.Runtime) (*goja.Object, error) {
	console := vm.NewObject()
	levels := map[string]io.Writer{
		"log":   e.stdout,
		"info":  e.stdout,
		"debug": e.stdout,
		"warn":  e.stderr,
		"error": e.stderr,
	}
	for level, w := range levels {
		if err := console.Set(level, consoleFunc(w)); err != nil {
			return nil, err
		}
	}
	if err := vm.Set("console", console); err != nil {
		return nil, err
	}

	module := vm.NewObject()
	exports := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}
	if err := vm.Set("module", module); err != nil {
		return nil, err
	}
	if err := vm.Set("exports", exports); err != nil {
		return nil, err
	}
	return module, nil
}

func consoleFunc(w io.Writer) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		_, _ = fmt.Fprintln(w, strings.Join(parts, " "))
		return goja.Undefined()
	}
}
