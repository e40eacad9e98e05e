package exitcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gyaneshwarpardhi/atmsvr/internal/bitacora"
	"github.com/gyaneshwarpardhi/atmsvr/internal/client"
	"github.com/gyaneshwarpardhi/atmsvr/internal/config"
	"github.com/gyaneshwarpardhi/atmsvr/internal/connector"
	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
	"github.com/gyaneshwarpardhi/atmsvr/internal/listener"
)

func TestFromError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, OK},
		{fmt.Errorf("missing -d: %w", ErrUsage), Usage},
		{fmt.Errorf("load: %w", config.ErrConfig), Config},
		{fmt.Errorf("line 3: %w", client.ErrDataFormat), DataErr},
		{fmt.Errorf("%w: atm.example", connector.ErrResolve), NoHost},
		{connector.ErrNoReachableHost, NoHost},
		{fmt.Errorf("bind: %w", listener.ErrServiceUnavailable), Unavailable},
		{fmt.Errorf("worker 2: %w", event.ErrTransport), IOErr},
		{fmt.Errorf("%w: sync", bitacora.ErrWrite), IOErr},
		{errors.New("something else"), Software},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FromError(tc.err), "%v", tc.err)
	}
}
