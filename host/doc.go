// Package host holds the callbacks the native host installs before anything
// else runs.
//
// A Bridge has two slots: a log callback and an exception callback. Every
// other component takes a *Bridge, rejects work with HostNotInitialized until
// Install has been called, and routes its diagnostics through Logger, whose
// zap core forwards entries to the log callback.
//
//	b := host.New()
//	b.Install(func(l host.Level, msg string) { ... }, func(desc string) { ... })
//	b.Logger().Info("ready")
//
// Default returns the process-wide bridge for hosts that only ever need one.
package host
