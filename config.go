package dq

import "dq/controller"

// Config is the full set of tunables the controller consults, re-exported at
// the package root the same way dht.go exposes its Config directly rather
// than behind an internal package.
type Config = controller.Config

// NewConfig returns the defaults named throughout the spec's glossary.
func NewConfig() Config {
	return controller.NewConfig()
}
