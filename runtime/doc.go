// Package runtime is the boundary call surface of the script host.
//
// # Quick Start
//
//	bridge := host.Default()
//	if err := bridge.Install(logFn, exceptionFn); err != nil {
//	    log.Fatal(err)
//	}
//
//	rt := runtime.New(bridge)
//	defer rt.Close(ctx)
//
//	game, err := rt.CreateContext(ctx, "game")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mod, err := rt.LoadFile(ctx, game, "scripts/player.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	player, err := rt.NewObject(ctx, mod)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := rt.Call(ctx, player, "add", 2, 3)
//	fmt.Println(out[0]) // 5
//
//	_ = rt.Unload(ctx, game)
//
// # Contexts and Modules
//
// A context groups modules that are unloaded together. Each context has its
// own engine, so unloading it frees every instance it created. Modules import
// each other by name; an import is resolved from the importing context first,
// then from the global module cache, then from the other contexts.
//
// # Objects and Handles
//
// NewObject instantiates a module and hands back a handle owned by the
// module's context. Any host value can be wrapped the same way with Wrap and
// recovered with Deref. Releasing a handle twice is a no-op; a stale handle
// never reaches a newer object. Unloading a context releases the handles it
// still owns and logs a warning for each.
//
// # Calls
//
// Call coerces Go arguments to the export's parameters. When the module
// carries a "wit" custom section the WIT signature drives the coercion:
//
//	Go Type                   WIT Type
//	─────────────────────────────────────
//	bool, Bool32              bool
//	integers (range checked)  s8..s64, u8..u64
//	float32, float64          f32, f64
//	rune                      char
//	string, []byte, String    string (copied through the guest's alloc export)
//
// Without a signature the core parameter types are used.
//
// # Host Functions
//
// Every context links the "scripthost" module:
//
//	log(level i32, ptr i32, len i32)
//	report_exception(ptr i32, len i32)
//
// Further functions are registered per namespace before the contexts that
// use them are created:
//
//	rt.RegisterFunc("game", "spawn", func(ctx context.Context, kind string, x, y float64) (uint32, error) {
//	    ...
//	})
//
// # Reload
//
// Reload unloads a context, waits for collection and finalizers, then loads
// the same sources into a fresh context of the same name. Forwarding modules
// in other contexts look their target up on every call, so they reach the
// reloaded code without relinking.
package runtime
