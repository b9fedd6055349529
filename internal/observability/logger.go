package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/esmwire/internal/logging"
)

// InitLogger installs a console logger tagged with app as the global logger.
// ESMWIRE_LOG_LEVEL overrides the info default.
func InitLogger(app string) zerolog.Logger {
	return initLogger(os.Stdout, app)
}

func initLogger(out io.Writer, app string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	level := zerolog.InfoLevel
	if lvl, ok := logging.ParseLevel(os.Getenv(logging.EnvLogLevel)); ok {
		level = lvl
	}
	logger := zerolog.New(output).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
