package notify

import (
	"context"
	"time"

	"vetclinic-api/internal/platform/httpclient"
	"vetclinic-api/internal/platform/logger"
	"vetclinic-api/internal/ports/notify"
)

// WebhookNotifier manda cada notificación como POST JSON a un endpoint
// externo (el servicio de notificaciones de la clínica). Fire-and-forget:
// el POST corre en su propia goroutine y un fallo solo deja un warn en el
// log, nunca propaga al llamador.
type WebhookNotifier struct {
	client *httpclient.Client
	url    string
	log    logger.Logger
}

func NewWebhookNotifier(url string, log logger.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		client: httpclient.New(5 * time.Second),
		url:    url,
		log:    log,
	}
}

var _ notify.Notifier = (*WebhookNotifier)(nil)

type webhookPayload struct {
	UserID  string         `json:"user_id"`
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
	SentAt  time.Time      `json:"sent_at"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, userID, typ, title, message string, payload map[string]any) {
	body := webhookPayload{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Payload: payload,
		SentAt:  time.Now(),
	}

	// Desacoplado del request que lo originó: si el llamador cancela su
	// contexto la notificación igual sale.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := n.client.DoJSON(ctx, "POST", n.url, nil, body, nil); err != nil && n.log != nil {
			n.log.Warn("webhook notify failed", map[string]any{
				"type": typ,
				"to":   userID,
				"err":  err.Error(),
			})
		}
	}()
}
