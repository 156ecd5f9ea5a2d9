// Package scripthost hosts WebAssembly script modules inside a native
// application: named load contexts that can be unloaded and reloaded,
// handle-based object passing across the host boundary, interned type
// metadata and forced collection.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	scripthost/
//	├── runtime/         Facade: contexts, objects, calls, host functions, reload
//	├── loader/          Load contexts, module loading and name resolution
//	├── engine/          Per-context wazero runtime, host and forwarding modules
//	├── modules/         Loaded module record and the global name-hash cache
//	├── metadata/        Descriptor tables, WIT signatures and the intern cache
//	├── resource/        Handle registry with owner contexts and drop hooks
//	├── boundary/        Handle, id, bool and string types shared with the host
//	├── gc/              Collection passes and finalizer draining
//	├── host/            Log and exception callbacks, zap bridge
//	├── watch/           File watching and hot reload
//	├── config/          scripthost.yaml loading, validation and schema
//	├── image/           Module image builder for tests and starter modules
//	├── errors/          Structured error types and status codes
//	└── cmd/scripthost/  Command line tool
//
// # Quick Start
//
//	bridge := host.New()
//	bridge.Install(host.ForwardTo(logger))
//
//	rt := runtime.New(bridge)
//	defer rt.Close(ctx)
//
//	scripts, err := rt.CreateContext(ctx, "scripts")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mod, err := rt.LoadFile(ctx, scripts, "player.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	h, err := rt.NewObject(ctx, mod)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := rt.Call(ctx, h, "add", 2, 3)
//	fmt.Println(out[0]) // 5
//
//	rt.Release(h)
//	rt.Unload(ctx, scripts)
//
// # Thread Safety
//
// Runtime is safe for concurrent use. Calls on one object are serialized;
// different objects run in parallel. Unloading a context must not race loads
// into it or wraps owned by it.
//
// # Memory Model
//
// WASM linear memory can only grow, never shrink. Unloading a context closes
// its engine, which is the only way to give that memory back.
package scripthost
