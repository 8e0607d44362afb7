package notify

import "context"

// Notifier es fire-and-forget: nunca está en el camino crítico de un
// workflow. Si falla, el caller descarta el error y sigue.
type Notifier interface {
	Notify(ctx context.Context, userID, event string, meta map[string]string) error
}
