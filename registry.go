package infoproxy

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var (
	registryLock sync.RWMutex
	proxyIDs     = map[reflect.Type]uint32{}
)

// RegisterProxy records the identifier of the given proxy type. It is called
// from init functions in code generated by infoproxygen when registration
// output is enabled; it is not typically called directly.
//
// Registering the same type twice with the same identifier is a no-op. Doing so
// with a different identifier panics.
func RegisterProxy(t reflect.Type, id uint32) {
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("info proxy %v must be a struct type, not %v", t, t.Kind()))
	}
	registryLock.Lock()
	defer registryLock.Unlock()
	if existing, ok := proxyIDs[t]; ok {
		if existing != id {
			panic(fmt.Sprintf("info proxy %v already registered with id %d; cannot register again with id %d", t, existing, id))
		}
		return
	}
	proxyIDs[t] = id
}

// ProxyID returns the registered identifier for the given type. The second
// result is false if the type was never registered.
func ProxyID(t reflect.Type) (uint32, bool) {
	registryLock.RLock()
	defer registryLock.RUnlock()
	id, ok := proxyIDs[t]
	return id, ok
}

// ProxyTypes returns all registered proxy types, ordered by identifier and
// then by type name.
func ProxyTypes() []reflect.Type {
	type entry struct {
		t  reflect.Type
		id uint32
	}
	registryLock.RLock()
	entries := make([]entry, 0, len(proxyIDs))
	for t, id := range proxyIDs {
		entries = append(entries, entry{t: t, id: id})
	}
	registryLock.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].id != entries[j].id {
			return entries[i].id < entries[j].id
		}
		return entries[i].t.String() < entries[j].t.String()
	})
	types := make([]reflect.Type, len(entries))
	for i := range entries {
		types[i] = entries[i].t
	}
	return types
}
