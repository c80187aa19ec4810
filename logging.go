package dialogsdk

import (
	"github.com/rs/zerolog"
)

// The SDK logs through zerolog. By default logging is disabled; host
// applications opt in with SetLogger.
var pkgLogger = zerolog.Nop()

// SetLogger installs the logger used by all SDK components.
func SetLogger(l zerolog.Logger) {
	pkgLogger = l
}

// componentLogger returns a child logger tagged with the component name.
// Returned by pointer so level methods chain directly on the call.
func componentLogger(component string) *zerolog.Logger {
	l := pkgLogger.With().Str("component", component).Logger()
	return &l
}
