package consultations_test

import (
	"context"
	"errors"
	"testing"

	"vetclinic-api/internal/adapters/storage/memory"
	"vetclinic-api/internal/domain/consultations"
	"vetclinic-api/internal/domain/pets"
	"vetclinic-api/internal/domain/visits"
)

type stubChecker struct {
	pending bool
}

func (s stubChecker) HasOpenPrescriptions(ctx context.Context, consultationID string) (bool, error) {
	return s.pending, nil
}

func setup(t *testing.T) (*consultations.Service, *visits.Service, visits.Visit) {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	petsSvc := pets.NewService(store.Pets())
	visitsSvc := visits.NewService(store.Visits(), petsSvc)
	svc := consultations.NewService(store.Consultations(), visitsSvc)

	p, err := petsSvc.Create(ctx, "owner-1", pets.CreateInput{Name: "Luna", Species: pets.SpeciesCat})
	if err != nil {
		t.Fatalf("create pet: %v", err)
	}
	v, err := visitsSvc.CheckIn(ctx, visits.CheckInInput{PetID: p.ID})
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if _, err := visitsSvc.TriageComplete(ctx, v.ID, visits.TriageInput{}); err != nil {
		t.Fatalf("triage: %v", err)
	}
	return svc, visitsSvc, v
}

func TestStart_MovesVisitAndCreates(t *testing.T) {
	svc, visitsSvc, v := setup(t)
	ctx := context.Background()

	c, err := svc.Start(ctx, v.ID, "doc-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.Status != consultations.StatusEnProgreso {
		t.Fatalf("status = %s", c.Status)
	}

	got, _ := visitsSvc.GetByID(ctx, v.ID)
	if got.Status != visits.StatusInConsultation {
		t.Fatalf("visit status = %s, want IN_CONSULTATION", got.Status)
	}
}

func TestStart_RejectsSecondConsultation(t *testing.T) {
	svc, _, v := setup(t)
	ctx := context.Background()

	if _, err := svc.Start(ctx, v.ID, "doc-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := svc.Start(ctx, v.ID, "doc-2")
	if !errors.Is(err, consultations.ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
}

func TestStart_GuardsOnVisitState(t *testing.T) {
	svc, visitsSvc, v := setup(t)
	ctx := context.Background()

	// La visita ya no está en espera: la transición corta el alta de la consulta.
	if _, err := svc.Start(ctx, v.ID, "doc-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Complete(ctx, mustByVisit(t, svc, v.ID).ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, err := svc.Start(ctx, v.ID, "doc-1")
	if err == nil {
		t.Fatal("expected error starting consultation on closed visit")
	}
	got, _ := visitsSvc.GetByID(ctx, v.ID)
	if got.Status != visits.StatusReadyForPayment {
		t.Fatalf("visit status = %s, want READY_FOR_PAYMENT", got.Status)
	}
}

func TestUpdateNotes_OnlyWhileInProgress(t *testing.T) {
	svc, _, v := setup(t)
	ctx := context.Background()

	c, _ := svc.Start(ctx, v.ID, "doc-1")

	subj := "decaído desde ayer"
	diag := "gastroenteritis"
	got, err := svc.UpdateNotes(ctx, c.ID, consultations.NotesInput{
		Subjective: &subj,
		Diagnosis:  &diag,
	})
	if err != nil {
		t.Fatalf("update notes: %v", err)
	}
	if got.Subjective != subj || got.Diagnosis != diag {
		t.Fatalf("notes not applied: %+v", got)
	}

	if _, err := svc.Complete(ctx, c.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.UpdateNotes(ctx, c.ID, consultations.NotesInput{Subjective: &subj}); !errors.Is(err, consultations.ErrNotOpen) {
		t.Fatalf("got %v, want ErrNotOpen", err)
	}
}

func TestComplete_RoutesByPendingPrescriptions(t *testing.T) {
	cases := []struct {
		name    string
		pending bool
		want    visits.Status
	}{
		{"no prescriptions goes to payment", false, visits.StatusReadyForPayment},
		{"open prescriptions go to pharmacy", true, visits.StatusAwaitingPharmacy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, visitsSvc, v := setup(t)
			ctx := context.Background()

			svc.BindPrescriptions(stubChecker{pending: tc.pending})

			c, err := svc.Start(ctx, v.ID, "doc-1")
			if err != nil {
				t.Fatalf("start: %v", err)
			}
			done, err := svc.Complete(ctx, c.ID)
			if err != nil {
				t.Fatalf("complete: %v", err)
			}
			if done.Status != consultations.StatusCompletada || done.CompletedAt == nil {
				t.Fatalf("consultation not closed: %+v", done)
			}

			got, _ := visitsSvc.GetByID(ctx, v.ID)
			if got.Status != tc.want {
				t.Fatalf("visit status = %s, want %s", got.Status, tc.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	svc, _, v := setup(t)
	ctx := context.Background()

	c, _ := svc.Start(ctx, v.ID, "doc-1")

	visitID, doctorID, open, err := svc.Lookup(ctx, c.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if visitID != v.ID || doctorID != "doc-1" || !open {
		t.Fatalf("lookup = (%s, %s, %v)", visitID, doctorID, open)
	}

	if _, err := svc.Complete(ctx, c.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, _, open, _ = svc.Lookup(ctx, c.ID)
	if open {
		t.Fatal("lookup still reports open after complete")
	}
}

func mustByVisit(t *testing.T, svc *consultations.Service, visitID string) consultations.Consultation {
	t.Helper()
	c, ok, err := svc.GetByVisit(context.Background(), visitID)
	if err != nil || !ok {
		t.Fatalf("get by visit: ok=%v err=%v", ok, err)
	}
	return c
}
