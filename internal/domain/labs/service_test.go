package labs_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"vetclinic-api/internal/adapters/storage/memory"
	"vetclinic-api/internal/domain/consultations"
	"vetclinic-api/internal/domain/labs"
	"vetclinic-api/internal/domain/pets"
	"vetclinic-api/internal/domain/visits"
)

// recordingNotifier captura lo enviado para inspeccionarlo.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []struct{ userID, typ string }
}

func (n *recordingNotifier) Notify(ctx context.Context, userID, typ, title, message string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, struct{ userID, typ string }{userID, typ})
}

type labFixture struct {
	labs      *labs.Service
	visits    *visits.Service
	notifier  *recordingNotifier
	visit     visits.Visit
	consultID string
}

func newLabFixture(t *testing.T) *labFixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	petsSvc := pets.NewService(store.Pets())
	visitsSvc := visits.NewService(store.Visits(), petsSvc)
	consultSvc := consultations.NewService(store.Consultations(), visitsSvc)
	notifier := &recordingNotifier{}
	labsSvc := labs.NewService(store.Labs(), visitsSvc, consultSvc, notifier)

	p, err := petsSvc.Create(ctx, "owner-1", pets.CreateInput{Name: "Rocky", Species: pets.SpeciesDog})
	if err != nil {
		t.Fatalf("create pet: %v", err)
	}
	v, _ := visitsSvc.CheckIn(ctx, visits.CheckInInput{PetID: p.ID})
	if _, err := visitsSvc.TriageComplete(ctx, v.ID, visits.TriageInput{}); err != nil {
		t.Fatalf("triage: %v", err)
	}
	c, err := consultSvc.Start(ctx, v.ID, "doc-1")
	if err != nil {
		t.Fatalf("start consultation: %v", err)
	}

	return &labFixture{labs: labsSvc, visits: visitsSvc, notifier: notifier, visit: v, consultID: c.ID}
}

func TestRequest_MovesVisitToAwaitingStudies(t *testing.T) {
	f := newLabFixture(t)
	ctx := context.Background()

	lr, err := f.labs.Request(ctx, labs.RequestInput{
		ConsultationID: f.consultID,
		Kind:           "hemograma",
	}, "doc-1")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if lr.Status != labs.StatusSolicitado || lr.VisitID != f.visit.ID {
		t.Fatalf("request = %+v", lr)
	}

	v, _ := f.visits.GetByID(ctx, f.visit.ID)
	if v.Status != visits.StatusAwaitingStudies {
		t.Fatalf("visit status = %s, want AWAITING_STUDIES", v.Status)
	}
}

func TestRequest_GuardsOnVisitState(t *testing.T) {
	f := newLabFixture(t)
	ctx := context.Background()

	if _, err := f.labs.Request(ctx, labs.RequestInput{ConsultationID: f.consultID, Kind: "hemograma"}, "doc-1"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	// La visita ya está en AWAITING_STUDIES: el segundo pedido no pasa el guard.
	_, err := f.labs.Request(ctx, labs.RequestInput{ConsultationID: f.consultID, Kind: "radiografía"}, "doc-1")
	if !errors.Is(err, visits.ErrInvalidStateTransition) {
		t.Fatalf("got %v, want ErrInvalidStateTransition", err)
	}
}

func TestSubmitResults_ReturnsVisitToDoctorAndNotifies(t *testing.T) {
	f := newLabFixture(t)
	ctx := context.Background()

	lr, _ := f.labs.Request(ctx, labs.RequestInput{ConsultationID: f.consultID, Kind: "hemograma"}, "doc-1")

	got, err := f.labs.SubmitResults(ctx, lr.ID, "leucocitos elevados", "lab-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Status != labs.StatusCompletado || got.Results == "" || got.ResultsAt == nil {
		t.Fatalf("result = %+v", got)
	}

	v, _ := f.visits.GetByID(ctx, f.visit.ID)
	if v.Status != visits.StatusInConsultation {
		t.Fatalf("visit status = %s, want IN_CONSULTATION", v.Status)
	}

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].userID != "doc-1" {
		t.Fatalf("notifications = %+v", f.notifier.sent)
	}
}

func TestSubmitResults_RejectsEmptyAndDouble(t *testing.T) {
	f := newLabFixture(t)
	ctx := context.Background()

	lr, _ := f.labs.Request(ctx, labs.RequestInput{ConsultationID: f.consultID, Kind: "ecografía"}, "doc-1")

	if _, err := f.labs.SubmitResults(ctx, lr.ID, "  ", "lab-1"); !errors.Is(err, labs.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
	if _, err := f.labs.SubmitResults(ctx, lr.ID, "normal", "lab-1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.labs.SubmitResults(ctx, lr.ID, "otra vez", "lab-1"); !errors.Is(err, labs.ErrAlreadyDone) {
		t.Fatalf("got %v, want ErrAlreadyDone", err)
	}
}
