package reactive

// traverse recursively reads every value reachable from v while a watcher
// is active, so the watcher subscribes to every nested container. The seen
// set holds container dep ids to survive cyclic structures.
func traverse(v any) {
	traverseValue(v, map[uint64]struct{}{})
}

func traverseValue(v any, seen map[uint64]struct{}) {
	switch x := v.(type) {
	case *Map:
		if _, ok := seen[x.dep.id]; ok {
			x.dep.Depend()
			return
		}
		seen[x.dep.id] = struct{}{}
		for _, key := range x.Keys() {
			traverseValue(x.Get(key), seen)
		}
	case *List:
		if _, ok := seen[x.dep.id]; ok {
			x.dep.Depend()
			return
		}
		seen[x.dep.id] = struct{}{}
		for i, n := 0, x.Len(); i < n; i++ {
			traverseValue(x.Get(i), seen)
		}
	case map[string]any:
		for _, item := range x {
			traverseValue(item, seen)
		}
	case []any:
		for _, item := range x {
			traverseValue(item, seen)
		}
	}
}
