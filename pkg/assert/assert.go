package assert

import (
	"fmt"
	"reflect"
	"runtime"
)

// NotNil panics when v is nil, including typed nil pointers and interfaces.
func NotNil(v interface{}) {
	if isNil(v) {
		panic("assert: unexpected nil value")
	}
}

// NotCircular panics when the calling function already appears further up the
// stack, which catches singleton constructors that recursively depend on themselves.
func NotCircular() {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	if n == 0 {
		return
	}
	frames := runtime.CallersFrames(pcs[:n])
	first, more := frames.Next()
	for more {
		var frame runtime.Frame
		frame, more = frames.Next()
		if frame.Function == first.Function {
			panic(fmt.Sprintf("assert: circular initialization detected in %s", first.Function))
		}
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
