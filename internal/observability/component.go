package observability

import (
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
)

var (
	fallbackOnce   sync.Once
	fallbackLogger *logging.Logger
)

// ComponentLogger returns the logger long-lived components should use when
// none was injected: the server logger, then the CLI logger, then a lazily
// created CLI logger.
func ComponentLogger() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	if CLILogger != nil {
		return CLILogger
	}
	fallbackOnce.Do(func() {
		logger, err := logging.NewCLI(ServiceName)
		if err == nil {
			fallbackLogger = logger
		}
	})
	return fallbackLogger
}
