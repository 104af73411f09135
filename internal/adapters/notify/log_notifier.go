package notify

import (
	"context"

	"vetclinic-api/internal/platform/logger"
	"vetclinic-api/internal/ports/notify"
)

// LogNotifier escribe las notificaciones al log. Es el default en dev,
// donde no hay webhook configurado.
type LogNotifier struct {
	log logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

var _ notify.Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) Notify(ctx context.Context, userID, typ, title, message string, payload map[string]any) {
	if n.log == nil {
		return
	}
	n.log.Info("notification", map[string]any{
		"to":      userID,
		"type":    typ,
		"title":   title,
		"message": message,
		"payload": payload,
	})
}
