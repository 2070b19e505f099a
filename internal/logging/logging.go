// README: zerolog construction; one logger per component.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger tagged with the given component. HAIL_ENV=dev switches
// to the human-readable console writer; anything else emits JSON.
func New(component string) zerolog.Logger {
	env := strings.ToLower(os.Getenv("HAIL_ENV"))
	if env == "dev" {
		writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(writer).With().Timestamp().Str("component", component).Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("component", component).Logger()
}
