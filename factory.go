package glim

import (
	"fmt"
	"sort"
	"sync"
)

// DeviceFactory is a function that opens a new device instance.
// Factories are registered via Register() and called by NewDevice().
// A factory may fail, e.g. when no suitable GPU adapter is present.
type DeviceFactory func() (Device, error)

// Factory registry state - protected by mutex for thread-safe access.
var (
	factoryMu sync.RWMutex
	factories = make(map[string]DeviceFactory)
)

// Register registers a device factory with the given name.
// This function is typically called from init() in backend packages,
// following the database/sql driver pattern:
//
//	func init() {
//	    glim.Register("trace", func() (glim.Device, error) {
//	        return New(), nil
//	    })
//	}
//
// Register panics if:
//   - factory is nil
//   - a device with the same name is already registered
//
// This ensures that duplicate registrations are caught early during
// program initialization rather than silently overwriting backends.
func Register(name string, factory DeviceFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if factory == nil {
		panic("glim: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("glim: Register called twice for " + name)
	}
	factories[name] = factory
}

// Unregister removes a device factory from the registry.
// This is primarily useful for testing to clean up between tests.
// If the name is not registered, this is a no-op.
func Unregister(name string) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	delete(factories, name)
}

// NewDevice opens a new device instance by name.
// The name must match a previously registered backend.
//
// Example:
//
//	import _ "github.com/gogpu/glim/backend/wgpu" // Register wgpu backend
//
//	dev, err := glim.NewDevice("wgpu")
//	if err != nil {
//	    // Backend not registered, or the device failed to open.
//	}
//
// Returns an error if the backend is not registered; the message
// includes a hint about forgotten imports.
func NewDevice(name string) (Device, error) {
	factoryMu.RLock()
	factory, ok := factories[name]
	factoryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("glim: unknown backend %q (forgotten import?)", name)
	}
	return factory()
}

// MustDevice opens a new device instance by name, panicking on error.
// This is useful when backend availability is guaranteed.
func MustDevice(name string) Device {
	d, err := NewDevice(name)
	if err != nil {
		panic(err)
	}
	return d
}

// Devices returns a sorted list of registered backend names.
// The list is sorted alphabetically for consistent output.
func Devices() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Count returns the number of registered device factories.
func Count() int {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	return len(factories)
}
