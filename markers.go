package calldi

import (
	"fmt"
	"reflect"
)

// typeMarker is implemented by the generic marker parameter types. The
// visitor recognizes a parameter as injected when a pointer to its type
// implements this interface.
type typeMarker interface {
	injectionSpec() markerSpec
}

// markerSetter receives the resolved dependency value. It is implemented
// with pointer receivers so the invocation engine can populate a freshly
// allocated marker before passing it to the callback. A value that doesn't
// fit the marker's type parameter is an error, not a panic; an explicit
// descriptor can redirect a marker to any binding.
type markerSetter interface {
	setResolved(value any) error
}

type markerSpec struct {
	candidates []reflect.Type
	nilDefault bool
}

// Injected declares a parameter as requiring a type-injected value. The
// resolved value is delivered in Value:
//
//	func handler(db Injected[*Database]) {
//	    db.Value.Query(...)
//	}
//
// If no value is bound for T the invocation fails with a
// MissingDependencyError.
type Injected[T any] struct {
	Value T
}

func (Injected[T]) injectionSpec() markerSpec {
	return markerSpec{candidates: []reflect.Type{typeOf[T]()}}
}

func (m *Injected[T]) setResolved(value any) error {
	if value == nil {
		return nil
	}
	v, ok := value.(T)
	if !ok {
		return fmt.Errorf("resolved value of type %T is not assignable to %v", value, typeOf[T]())
	}
	m.Value = v
	return nil
}

// Optional declares a parameter as requiring a type-injected value that
// falls back to the zero value when no binding exists. Ok reports whether a
// binding was found.
type Optional[T any] struct {
	Value T
	Ok    bool
}

func (Optional[T]) injectionSpec() markerSpec {
	return markerSpec{candidates: []reflect.Type{typeOf[T]()}, nilDefault: true}
}

func (m *Optional[T]) setResolved(value any) error {
	if value == nil {
		return nil
	}
	v, ok := value.(T)
	if !ok {
		return fmt.Errorf("resolved value of type %T is not assignable to %v", value, typeOf[T]())
	}
	m.Value = v
	m.Ok = true
	return nil
}

// Union2 declares a parameter resolved by trying A then B against the type
// registry, in that order. The first bound value wins and is delivered in
// Value. If neither type is bound the invocation fails with a
// MissingDependencyError naming both types.
type Union2[A any, B any] struct {
	Value any
}

func (Union2[A, B]) injectionSpec() markerSpec {
	return markerSpec{candidates: []reflect.Type{typeOf[A](), typeOf[B]()}}
}

func (m *Union2[A, B]) setResolved(value any) error {
	m.Value = value
	return nil
}

// Union3 behaves like Union2 with three candidate types.
type Union3[A any, B any, C any] struct {
	Value any
}

func (Union3[A, B, C]) injectionSpec() markerSpec {
	return markerSpec{candidates: []reflect.Type{typeOf[A](), typeOf[B](), typeOf[C]()}}
}

func (m *Union3[A, B, C]) setResolved(value any) error {
	m.Value = value
	return nil
}

// typeOf returns the reflect.Type for T, including interface types.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// TypeOf returns the reflect.Type for T. It is the type token used with
// WithType and WithTypes, and works for interface types where
// reflect.TypeOf on a value would not.
func TypeOf[T any]() reflect.Type {
	return typeOf[T]()
}

// markerSpecFor returns the injection spec for a marker parameter type, or
// ok=false if the type isn't a marker.
func markerSpecFor(t reflect.Type) (markerSpec, bool) {
	if t.Kind() != reflect.Struct {
		return markerSpec{}, false
	}
	if m, ok := reflect.New(t).Elem().Interface().(typeMarker); ok {
		return m.injectionSpec(), true
	}
	return markerSpec{}, false
}

// newMarkerValue allocates a marker of type t, populates it with the
// resolved value and returns it ready to be passed as a parameter.
func newMarkerValue(t reflect.Type, value any) (reflect.Value, error) {
	mv := reflect.New(t)
	if err := mv.Interface().(markerSetter).setResolved(value); err != nil {
		return reflect.Value{}, err
	}
	return mv.Elem(), nil
}
