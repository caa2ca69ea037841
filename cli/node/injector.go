package node

import (
	"reflect"

	"golang.org/x/xerrors"
)

// reflectInjector holds the components started by the initializers, such as
// the database, the pool and the ordering service. An interface is resolved
// to the first component implementing it, in injection order, so that an
// initializer can rely on the components of the ones before it.
//
// - implements node.Injector
type reflectInjector struct {
	deps []reflect.Value
}

// NewInjector returns an injector without any component.
func NewInjector() Injector {
	return &reflectInjector{}
}

// Resolve implements node.Injector.
func (inj *reflectInjector) Resolve(v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr {
		return xerrors.New("expect a pointer")
	}

	target := rv.Elem()
	if !target.IsValid() {
		return xerrors.Errorf("reflect value '%v' is invalid", rv)
	}

	for _, dep := range inj.deps {
		if dep.Type().AssignableTo(target.Type()) {
			target.Set(dep)
			return nil
		}
	}

	return xerrors.Errorf("couldn't find dependency for '%v'", target.Type())
}

// Inject implements node.Injector. A component replaces the one of the same
// concrete type, if any, and keeps its position.
func (inj *reflectInjector) Inject(v interface{}) {
	dep := reflect.ValueOf(v)

	for i := range inj.deps {
		if inj.deps[i].Type() == dep.Type() {
			inj.deps[i] = dep
			return
		}
	}

	inj.deps = append(inj.deps, dep)
}

// dependencies returns the types of the components in injection order.
func dependencies(inj Injector) []string {
	ri, ok := inj.(*reflectInjector)
	if !ok {
		return nil
	}

	names := make([]string, len(ri.deps))
	for i, dep := range ri.deps {
		names[i] = dep.Type().String()
	}

	return names
}
