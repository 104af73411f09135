package main

import (
	"net/http"
	"os"
	"time"

	notifyadapter "vetclinic-api/internal/adapters/notify"
	"vetclinic-api/internal/adapters/auth/vetgate"
	"vetclinic-api/internal/platform/logger"
	"vetclinic-api/internal/ports/auth"
	"vetclinic-api/internal/ports/notify"
	"vetclinic-api/internal/router"

	"github.com/joho/godotenv"
)

func main() {
	// .env es opcional; en prod las vars vienen del entorno.
	_ = godotenv.Load()

	log := logger.NewFromEnv()

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	var verifier auth.AuthVerifier
	if baseURL := os.Getenv("AUTH_BASE_URL"); baseURL != "" {
		client, err := vetgate.NewClient(vetgate.Config{
			BaseURL: baseURL,
			APIKey:  os.Getenv("AUTH_API_KEY"),
		})
		if err != nil {
			log.Error("invalid auth config", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
		verifier = vetgate.NewVerifier(client)
	} else {
		log.Warn("AUTH_BASE_URL not set, running in dev mode with X-Debug headers", nil)
	}

	var notifier notify.Notifier
	if url := os.Getenv("NOTIFY_WEBHOOK_URL"); url != "" {
		notifier = notifyadapter.NewWebhookNotifier(url, log)
	} else {
		notifier = notifyadapter.NewLogNotifier(log)
	}

	r := router.NewRouter(router.Options{
		AuthVerifier: verifier,
		Logger:       log,
		Notifier:     notifier,
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("starting server", map[string]any{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", map[string]any{"err": err.Error()})
		os.Exit(1)
	}
}
