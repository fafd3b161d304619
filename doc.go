// Package glim provides a CPU-side command layer over stateful
// immediate-mode graphics backends.
//
// The package tracks every piece of backend binding state in a
// [StateCache] so that redundant state changes are elided before they
// reach the device, hands out generation-checked [ResourceKey] handles
// through a [ResourceRegistry] so that destroyed resources fail fast
// instead of aliasing recycled slots, and records draws into a
// [DrawList] that replays them in submission order at flush time.
//
// Backends implement the [Device] interface and register themselves
// through [Register], typically from an init function:
//
//	import _ "github.com/gogpu/glim/backend/trace"
//
//	ctx, err := glim.NewContext(glim.WithBackend("trace"))
//
// A Context is not safe for concurrent use; it is designed for a single
// owner goroutine, matching the threading model of the underlying
// graphics APIs.
package glim
