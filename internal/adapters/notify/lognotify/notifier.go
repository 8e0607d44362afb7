package lognotify

import (
	"context"

	"pet-registry/internal/platform/logger"
)

// Notifier escribe las notificaciones al log estructurado. Es el
// notifier por defecto mientras no haya canal real (email, push);
// cualquier canal futuro implementa el mismo port.
type Notifier struct {
	log logger.Logger
}

func New(log logger.Logger) *Notifier {
	return &Notifier{log: log.With(map[string]any{"component": "notifier"})}
}

func (n *Notifier) Notify(ctx context.Context, userID, event string, meta map[string]string) error {
	fields := map[string]any{
		"user_id": userID,
		"event":   event,
	}
	for k, v := range meta {
		fields[k] = v
	}
	n.log.Info("notification", fields)
	return nil
}
