// Package log provides a small opinionated wrapper around Go's standard
// library logging facilities. It offers a consistent way to emit logs per
// application component while keeping the surface minimal.
//
//   - Per-component loggers via ForComponent(name)
//   - Automatic prefix in every line: `[name]`
//   - Level helpers: Infof, Warnf, Errorf, Debugf
//   - Debug logging can be enabled globally (SetGlobalDebug) or per component
//     (EnableDebugFor / DisableDebugFor)
//   - Central output writer (SetOutput) that updates existing loggers
//
// Tests can redirect output by calling SetOutput with a bytes.Buffer and
// asserting on the captured contents.
//
// All exported functions are safe for concurrent use. Internally the package
// relies on sync.Map and atomic primitives for minimal locking.
package log
