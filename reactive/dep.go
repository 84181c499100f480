package reactive

import "sort"

// Dep is the subscription list for one observable location: a container
// cell, or a container itself for structural changes ("key added",
// "collection mutated"). Watchers subscribe during evaluation and are
// notified on writes.
type Dep struct {
	rt   *Runtime
	id   uint64
	subs []*Watcher
}

func (rt *Runtime) newDep() *Dep {
	return &Dep{rt: rt, id: rt.nextDepID()}
}

// ID returns the dep's creation-ordered id.
func (d *Dep) ID() uint64 {
	return d.id
}

func (d *Dep) addSub(w *Watcher) {
	d.subs = append(d.subs, w)
}

func (d *Dep) removeSub(w *Watcher) {
	for i, sub := range d.subs {
		if sub == w {
			d.subs = append(d.subs[:i], d.subs[i+1:]...)
			return
		}
	}
}

// Depend subscribes the runtime's active watcher, if any, to this dep.
// The watcher's id-sets keep the subscription unique.
func (d *Dep) Depend() {
	if w := d.rt.target; w != nil {
		w.addDep(d)
	}
}

// Notify invalidates every current subscriber. The subscriber list is
// snapshotted first so re-entrant subscription changes don't disturb the
// iteration. Under a sync scheduler the snapshot is sorted by watcher id,
// since without async batching the subscription order must stand in for the
// scheduler's ordering guarantee.
func (d *Dep) Notify() {
	subs := make([]*Watcher, len(d.subs))
	copy(subs, d.subs)
	if d.rt.sched.sync {
		sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
	}
	for _, w := range subs {
		w.Update()
	}
}
