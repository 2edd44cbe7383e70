// Package logger wraps zap for the updater.
//
// A global sugared logger writes human-readable console lines; the context
// helpers (ToContext/FromContext/WithName/WithKV) let every pipeline stage
// log with the scope it was handed, and the level helpers let the CLI switch
// verbosity at startup.
package logger
