package core

import (
	"reflect"

	"github.com/encodeous/dvnet/state"
)

func Get[T state.NyModule](s *state.State) T {
	t := reflect.TypeFor[T]()
	return s.Modules[t.String()].(T)
}

// Find is Get for modules that may not be loaded.
func Find[T state.NyModule](s *state.State) (T, bool) {
	t := reflect.TypeFor[T]()
	m, ok := s.Modules[t.String()].(T)
	return m, ok
}
