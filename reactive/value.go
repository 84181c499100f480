package reactive

import (
	"math"
	"reflect"
)

// sameValue reports whether a write of b over a should be treated as a
// no-op. Comparison is by identity: comparable values use ==, slices, maps,
// and funcs compare by pointer, and NaN equals NaN so repeated NaN writes
// stay silent.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNaN(a) && isNaN(b) {
		return true
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if !ta.Comparable() {
		va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
		switch va.Kind() {
		case reflect.Slice:
			return va.Len() == vb.Len() && (va.Len() == 0 || va.Pointer() == vb.Pointer())
		case reflect.Map, reflect.Func:
			return va.Pointer() == vb.Pointer()
		}
		return false
	}
	return a == b
}

func isNaN(v any) bool {
	switch n := v.(type) {
	case float64:
		return math.IsNaN(n)
	case float32:
		return math.IsNaN(float64(n))
	}
	return false
}

// containerDep returns the structural dep of an observed container value,
// or nil when the value is not a container.
func containerDep(v any) *Dep {
	switch c := v.(type) {
	case *Map:
		return c.dep
	case *List:
		return c.dep
	}
	return nil
}

// dependValue registers the active watcher on a just-read value's container
// dep, so structural changes (key adds, collection mutation) invalidate the
// reader even though no cell-level accessor can intercept them. Lists are
// walked so nested containers register too, compensating for element
// mutation through an index.
func dependValue(v any) {
	switch c := v.(type) {
	case *Map:
		c.dep.Depend()
	case *List:
		dependList(c)
	}
}

func dependList(l *List) {
	l.dep.Depend()
	for _, item := range l.items {
		dependValue(item)
	}
}
