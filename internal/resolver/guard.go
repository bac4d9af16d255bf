package resolver

import (
	"log"
)

// guarded runs fn and turns a panic into the zero value of T. Every cache
// access goes through it, so a failure while a lock is held degrades the
// lookup to "not found" instead of tearing down the caller. Locks taken
// inside fn must be released with defer.
func guarded[T any](what string, fn func() T) (result T) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Cache unavailable during %s: %v", what, r)
			var zero T
			result = zero
		}
	}()

	return fn()
}
