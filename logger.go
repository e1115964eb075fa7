package declwire

// Logger defines the interface for structured logging used throughout the
// component manager. All contained failures (missing descriptors, parse
// errors, component stop errors) are reported through this interface with
// key-value context identifying the module and the triggering resource.
//
// The variadic arguments are key-value pairs:
//
//	logger.Error("Descriptor not found", "module", mod.Name(), "path", path)
//
// This shape is compatible with slog, zap's sugared logger, logrus, and
// similar structured logging libraries, so callers can bind whichever
// backend they already use. See cmd/declwire for an slog binding.
type Logger interface {
	// Info logs normal lifecycle events such as components being
	// registered or modules being unloaded.
	Info(msg string, args ...any)

	// Error logs contained failures. No error in this package is silently
	// swallowed; anything that skips a descriptor or component is logged
	// here with the module identity and resource path.
	Error(msg string, args ...any)

	// Warn logs unusual conditions that do not skip any work.
	Warn(msg string, args ...any)

	// Debug logs per-line and per-descriptor diagnostic detail.
	Debug(msg string, args ...any)
}
