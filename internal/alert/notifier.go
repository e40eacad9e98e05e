package alert

import (
	"context"
	"fmt"

	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
)

// Notifier is the interface every alert channel must satisfy.
type Notifier interface {
	// Channel returns the name this notifier is registered under.
	Channel() string
	// Notify delivers one alert for ev.
	Notify(ctx context.Context, ev event.Event) error
}

// Subject is the subject line used by every channel.
const Subject = "Alerta SVR! :("

// Body renders the alert text for ev.
func Body(ev event.Event) string {
	return fmt.Sprintf("Hubo una alerta en el ATM %d.\r\nCódigo de error: %d.\r\nMensaje de error: %s.\r\n",
		ev.Origin, uint8(ev.Type), ev.Type.String())
}
