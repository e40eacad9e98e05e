// Package exitcode maps the collector's failure classes to sysexits(3)
// process exit statuses.
package exitcode

import (
	"errors"

	"github.com/gyaneshwarpardhi/atmsvr/internal/bitacora"
	"github.com/gyaneshwarpardhi/atmsvr/internal/client"
	"github.com/gyaneshwarpardhi/atmsvr/internal/config"
	"github.com/gyaneshwarpardhi/atmsvr/internal/connector"
	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
	"github.com/gyaneshwarpardhi/atmsvr/internal/listener"
)

const (
	OK          = 0
	Usage       = 64 // EX_USAGE
	DataErr     = 65 // EX_DATAERR
	NoHost      = 68 // EX_NOHOST
	Unavailable = 69 // EX_UNAVAILABLE
	Software    = 70 // EX_SOFTWARE
	IOErr       = 74 // EX_IOERR
	Config      = 78 // EX_CONFIG
)

// ErrUsage marks bad command-line arguments.
var ErrUsage = errors.New("usage error")

var classes = []struct {
	err  error
	code int
}{
	{ErrUsage, Usage},
	{config.ErrConfig, Config},
	{client.ErrDataFormat, DataErr},
	{connector.ErrResolve, NoHost},
	{connector.ErrNoReachableHost, NoHost},
	{listener.ErrServiceUnavailable, Unavailable},
	{event.ErrTransport, IOErr},
	{bitacora.ErrWrite, IOErr},
}

// FromError returns the exit status for err. Unclassified errors are
// internal software errors.
func FromError(err error) int {
	if err == nil {
		return OK
	}
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return Software
}
