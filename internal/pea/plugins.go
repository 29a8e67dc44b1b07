package pea

import (
	"fmt"
	"plugin"
)

// PluginLoader preloads the shared objects named in Config.PyModules
// before the Executor is constructed, matching the original's ordering
// where PathImporter.add_modules runs first — executor config can
// reference types those modules register.
type PluginLoader struct {
	loaded []*plugin.Plugin
}

// Load opens every path in turn, failing fast on the first error.
// Already-opened plugins are left open on failure; Go plugins cannot be
// unloaded once opened, so there is nothing to roll back.
func (l *PluginLoader) Load(paths []string) error {
	for _, path := range paths {
		p, err := plugin.Open(path)
		if err != nil {
			return fmt.Errorf("load plugin %q: %w", path, err)
		}
		l.loaded = append(l.loaded, p)
	}
	return nil
}
