package router

import (
	"database/sql"
	"net/http"
	"os"

	notifyadapter "vetclinic-api/internal/adapters/notify"
	mem "vetclinic-api/internal/adapters/storage/memory"
	pg "vetclinic-api/internal/adapters/storage/postgres"
	"vetclinic-api/internal/domain/consultations"
	"vetclinic-api/internal/domain/labs"
	"vetclinic-api/internal/domain/pets"
	"vetclinic-api/internal/domain/pharmacy"
	"vetclinic-api/internal/domain/visits"
	"vetclinic-api/internal/middleware"
	"vetclinic-api/internal/platform/logger"
	"vetclinic-api/internal/ports/auth"
	"vetclinic-api/internal/ports/notify"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	Logger   logger.Logger
	Notifier notify.Notifier
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	log := opts.Logger
	if log == nil {
		log = logger.NewFromEnv()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifyadapter.NewLogNotifier(log)
	}

	var (
		petRepo      pets.Repository
		visitRepo    visits.Repository
		consultRepo  consultations.Repository
		labRepo      labs.Repository
		pharmacyRepo pharmacy.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			}
		}
	}

	if db != nil {
		petRepo = pg.NewPetsRepo(db)
		visitRepo = pg.NewVisitsRepo(db)
		consultRepo = pg.NewConsultationsRepo(db)
		labRepo = pg.NewLabsRepo(db)
		pharmacyRepo = pg.NewPharmacyRepo(db)
	} else {
		store := mem.NewStore()
		petRepo = store.Pets()
		visitRepo = store.Visits()
		consultRepo = store.Consultations()
		labRepo = store.Labs()
		pharmacyRepo = store.Pharmacy()
	}

	// Services por módulo. El orden importa: visitas primero, consultas
	// encima, y farmacia/laboratorio colgando de ambas. El ciclo
	// consultas<->recetas se cierra al final con BindPrescriptions.
	petsSvc := pets.NewService(petRepo)
	visitsSvc := visits.NewService(visitRepo, petsSvc)
	consultSvc := consultations.NewService(consultRepo, visitsSvc)
	labsSvc := labs.NewService(labRepo, visitsSvc, consultSvc, notifier)

	ledger := pharmacy.NewLedger(pharmacyRepo)
	monitor := pharmacy.NewAlertMonitor(notifier, log, os.Getenv("PHARMACY_ALERT_USER"))
	issuer := pharmacy.NewIssuer(pharmacyRepo, ledger, consultSvc, visitsSvc)
	engine := pharmacy.NewEngine(pharmacyRepo, ledger, monitor, consultSvc, visitsSvc, notifier, log)

	consultSvc.BindPrescriptions(issuer)

	// Rutas por módulo
	pets.RegisterRoutes(r, petsSvc)
	visits.RegisterRoutes(r, visitsSvc)
	consultations.RegisterRoutes(r, consultSvc)
	labs.RegisterRoutes(r, labsSvc)
	pharmacy.RegisterRoutes(r, ledger, monitor, issuer, engine)

	return r
}
