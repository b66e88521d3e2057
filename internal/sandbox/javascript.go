package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// JavaScript evaluates snippets with the goja ECMAScript interpreter.
// The runtime has no host bindings beyond a console object, so snippets
// cannot reach the filesystem, network or process.
type JavaScript struct{}

// NewJavaScript creates a JavaScript engine.
func NewJavaScript() *JavaScript {
	return &JavaScript{}
}

// Eval runs source as the body of a function, so a top-level return
// statement produces the result value.
func (e *JavaScript) Eval(ctx context.Context, source string, sink *Sink) (res Result, err error) {
	vm := goja.New()

	defer func() {
		if r := recover(); r != nil {
			err = evalFailure(fmt.Sprint(r), nil)
		}
	}()

	if err := installConsole(vm, sink); err != nil {
		return Result{}, fmt.Errorf("failed to install console: %w", err)
	}

	// Interrupt the VM as soon as the run deadline passes or the run is cancelled
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	value, err := vm.RunScript("snippet.js", "(function() {"+source+"\n})()")
	if err != nil {
		var interrupt *goja.InterruptedError
		if errors.As(err, &interrupt) && ctx.Err() != nil {
			return Result{}, interrupted(ctx)
		}
		return Result{}, jsFailure(err)
	}

	if value == nil || goja.IsUndefined(value) {
		return Result{IsEmpty: true}, nil
	}
	return Result{Value: value.String()}, nil
}

// jsFailure converts a goja error into an evaluation failure carrying the
// thrown error's message.
func jsFailure(err error) error {
	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return evalFailure(err.Error(), err)
	}

	obj, ok := ex.Value().(*goja.Object)
	if !ok {
		return evalFailure("", fmt.Errorf("%w: %v", ErrUnknownThrow, ex.Value()))
	}
	msg := obj.Get("message")
	if msg == nil || goja.IsUndefined(msg) {
		return evalFailure("", fmt.Errorf("%w: %v", ErrUnknownThrow, ex.Value()))
	}
	return evalFailure(msg.String(), err)
}

// installConsole binds console.log/info/debug to the log channel and
// console.error/warn to the error channel.
func installConsole(vm *goja.Runtime, sink *Sink) error {
	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return fmt.Errorf("JSON.stringify is not callable")
	}

	render := func(arg goja.Value) string {
		// typeof arg === 'object' renders as JSON, like the browser playground
		if _, isObject := arg.(*goja.Object); isObject {
			if _, isFunc := goja.AssertFunction(arg); !isFunc {
				out, err := stringify(goja.Undefined(), arg, goja.Null(), vm.ToValue(2))
				if err == nil && out != nil && !goja.IsUndefined(out) {
					return out.String()
				}
			}
		}
		return arg.String()
	}

	writeTo := func(ch Channel) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = render(arg)
			}
			sink.Emit(ch, strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	console := vm.NewObject()
	for _, name := range []string{"log", "info", "debug"} {
		if err := console.Set(name, writeTo(Log)); err != nil {
			return err
		}
	}
	for _, name := range []string{"error", "warn"} {
		if err := console.Set(name, writeTo(Error)); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}
