package visits_test

import (
	"context"
	"errors"
	"testing"

	"vetclinic-api/internal/adapters/storage/memory"
	"vetclinic-api/internal/domain/pets"
	"vetclinic-api/internal/domain/visits"

	"github.com/shopspring/decimal"
)

func newFixture(t *testing.T) (*visits.Service, *pets.Service, pets.Pet) {
	t.Helper()
	store := memory.NewStore()
	petsSvc := pets.NewService(store.Pets())
	visitsSvc := visits.NewService(store.Visits(), petsSvc)

	p, err := petsSvc.Create(context.Background(), "owner-1", pets.CreateInput{
		Name:    "Milo",
		Species: pets.SpeciesDog,
	})
	if err != nil {
		t.Fatalf("create pet: %v", err)
	}
	return visitsSvc, petsSvc, p
}

func mustEstado(t *testing.T, petsSvc *pets.Service, petID string, want pets.Estado) {
	t.Helper()
	p, err := petsSvc.GetByID(context.Background(), petID)
	if err != nil {
		t.Fatalf("get pet: %v", err)
	}
	if p.Estado != want {
		t.Fatalf("pet estado = %s, want %s", p.Estado, want)
	}
}

func TestCheckIn_OpensVisitAndMovesPet(t *testing.T) {
	svc, petsSvc, p := newFixture(t)
	ctx := context.Background()

	v, err := svc.CheckIn(ctx, visits.CheckInInput{PetID: p.ID, Reason: "vómitos"})
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if v.Status != visits.StatusArrived {
		t.Fatalf("status = %s, want ARRIVED", v.Status)
	}
	mustEstado(t, petsSvc, p.ID, pets.EstadoEnSala)
}

func TestCheckIn_RejectsSecondOpenVisit(t *testing.T) {
	svc, _, p := newFixture(t)
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, visits.CheckInInput{PetID: p.ID}); err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	_, err := svc.CheckIn(ctx, visits.CheckInInput{PetID: p.ID})
	if !errors.Is(err, visits.ErrVisitAlreadyOpen) {
		t.Fatalf("second check-in: got %v, want ErrVisitAlreadyOpen", err)
	}
}

func TestCheckIn_RejectsInactivePet(t *testing.T) {
	svc, petsSvc, p := newFixture(t)
	ctx := context.Background()

	if _, err := petsSvc.Deactivate(ctx, p.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err := svc.CheckIn(ctx, visits.CheckInInput{PetID: p.ID})
	if !errors.Is(err, visits.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestFlow_ConsultationToPaymentAndDischarge(t *testing.T) {
	svc, petsSvc, p := newFixture(t)
	ctx := context.Background()

	v, err := svc.CheckIn(ctx, visits.CheckInInput{PetID: p.ID})
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}

	if _, err := svc.TriageComplete(ctx, v.ID, visits.TriageInput{
		Priority: visits.PriorityHigh,
		WeightKg: 12.4,
		Vitals:   "FC 120",
	}); err != nil {
		t.Fatalf("triage: %v", err)
	}
	mustEstado(t, petsSvc, p.ID, pets.EstadoEsperandoConsulta)

	if _, err := svc.ConsultationStart(ctx, v.ID); err != nil {
		t.Fatalf("consultation start: %v", err)
	}
	mustEstado(t, petsSvc, p.ID, pets.EstadoEnConsulta)

	got, err := svc.ConsultationComplete(ctx, v.ID, false)
	if err != nil {
		t.Fatalf("consultation complete: %v", err)
	}
	if got.Status != visits.StatusReadyForPayment {
		t.Fatalf("status = %s, want READY_FOR_PAYMENT", got.Status)
	}
	if got.Priority != visits.PriorityHigh || got.WeightKg != 12.4 {
		t.Fatalf("triage data lost: %+v", got)
	}

	// Sin pago no hay alta.
	if _, err := svc.Discharge(ctx, v.ID, visits.PaymentInput{}); !errors.Is(err, visits.ErrPaymentRequired) {
		t.Fatalf("discharge without payment: got %v, want ErrPaymentRequired", err)
	}

	final, err := svc.Discharge(ctx, v.ID, visits.PaymentInput{
		Total:  decimal.RequireFromString("350.00"),
		Method: "tarjeta",
	})
	if err != nil {
		t.Fatalf("discharge: %v", err)
	}
	if final.Status != visits.StatusDischarged {
		t.Fatalf("status = %s, want DISCHARGED", final.Status)
	}
	if final.DischargedAt == nil {
		t.Fatal("discharged_at not set")
	}
	if !final.PaymentTotal.Equal(decimal.RequireFromString("350.00")) {
		t.Fatalf("payment total = %s", final.PaymentTotal)
	}
	mustEstado(t, petsSvc, p.ID, pets.EstadoEnCasa)

	// Cerrada la visita, el paciente puede volver.
	if _, err := svc.CheckIn(ctx, visits.CheckInInput{PetID: p.ID}); err != nil {
		t.Fatalf("check-in after discharge: %v", err)
	}
}

func TestFlow_PharmacyBranchAndDispenseComplete(t *testing.T) {
	svc, petsSvc, p := newFixture(t)
	ctx := context.Background()

	v, _ := svc.CheckIn(ctx, visits.CheckInInput{PetID: p.ID})
	if _, err := svc.TriageComplete(ctx, v.ID, visits.TriageInput{}); err != nil {
		t.Fatalf("triage: %v", err)
	}
	if _, err := svc.ConsultationStart(ctx, v.ID); err != nil {
		t.Fatalf("consultation start: %v", err)
	}
	if _, err := svc.ConsultationComplete(ctx, v.ID, true); err != nil {
		t.Fatalf("consultation complete: %v", err)
	}
	mustEstado(t, petsSvc, p.ID, pets.EstadoEnFarmacia)

	got, err := svc.DispenseComplete(ctx, v.ID)
	if err != nil {
		t.Fatalf("dispense complete: %v", err)
	}
	if got.Status != visits.StatusReadyForPayment {
		t.Fatalf("status = %s, want READY_FOR_PAYMENT", got.Status)
	}
	mustEstado(t, petsSvc, p.ID, pets.EstadoPorPagar)
}

func TestDispenseComplete_NoopOutsidePharmacy(t *testing.T) {
	svc, _, p := newFixture(t)
	ctx := context.Background()

	v, _ := svc.CheckIn(ctx, visits.CheckInInput{PetID: p.ID})

	got, err := svc.DispenseComplete(ctx, v.ID)
	if err != nil {
		t.Fatalf("dispense complete: %v", err)
	}
	if got.Status != visits.StatusArrived {
		t.Fatalf("status = %s, want ARRIVED (no-op)", got.Status)
	}
}

func TestFlow_SurgeryHospitalizationBranch(t *testing.T) {
	svc, petsSvc, p := newFixture(t)
	ctx := context.Background()

	v, _ := svc.CheckIn(ctx, visits.CheckInInput{PetID: p.ID})
	svcMust := func(fn func() (visits.Visit, error)) visits.Visit {
		t.Helper()
		got, err := fn()
		if err != nil {
			t.Fatalf("transition failed: %v", err)
		}
		return got
	}

	svcMust(func() (visits.Visit, error) { return svc.TriageComplete(ctx, v.ID, visits.TriageInput{}) })
	svcMust(func() (visits.Visit, error) { return svc.ConsultationStart(ctx, v.ID) })
	svcMust(func() (visits.Visit, error) { return svc.Dispatch(ctx, v.ID, visits.EventSurgeryScheduled) })
	svcMust(func() (visits.Visit, error) { return svc.Dispatch(ctx, v.ID, visits.EventSurgeryStart) })
	mustEstado(t, petsSvc, p.ID, pets.EstadoEnCirugia)

	svcMust(func() (visits.Visit, error) { return svc.Dispatch(ctx, v.ID, visits.EventSurgeryHospitalized) })
	mustEstado(t, petsSvc, p.ID, pets.EstadoHospitalizado)

	svcMust(func() (visits.Visit, error) { return svc.Dispatch(ctx, v.ID, visits.EventDischargeReady) })
	got := svcMust(func() (visits.Visit, error) { return svc.Dispatch(ctx, v.ID, visits.EventWardRelease) })
	if got.Status != visits.StatusReadyForPayment {
		t.Fatalf("status = %s, want READY_FOR_PAYMENT", got.Status)
	}
}

func TestDispatch_RejectsNonSurgicalEvents(t *testing.T) {
	svc, _, p := newFixture(t)
	ctx := context.Background()

	v, _ := svc.CheckIn(ctx, visits.CheckInInput{PetID: p.ID})
	if _, err := svc.Dispatch(ctx, v.ID, visits.EventDischarge); !errors.Is(err, visits.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestDischarge_ZeroTotalAllowed(t *testing.T) {
	svc, _, p := newFixture(t)
	ctx := context.Background()

	v, _ := svc.CheckIn(ctx, visits.CheckInInput{PetID: p.ID})
	if _, err := svc.TriageComplete(ctx, v.ID, visits.TriageInput{}); err != nil {
		t.Fatalf("triage: %v", err)
	}
	if _, err := svc.ConsultationStart(ctx, v.ID); err != nil {
		t.Fatalf("consultation start: %v", err)
	}
	if _, err := svc.ConsultationComplete(ctx, v.ID, false); err != nil {
		t.Fatalf("consultation complete: %v", err)
	}

	// Total negativo nunca; el método sigue siendo obligatorio.
	if _, err := svc.Discharge(ctx, v.ID, visits.PaymentInput{
		Total:  decimal.RequireFromString("-1.00"),
		Method: "efectivo",
	}); !errors.Is(err, visits.ErrPaymentRequired) {
		t.Fatalf("negative total: got %v, want ErrPaymentRequired", err)
	}
	if _, err := svc.Discharge(ctx, v.ID, visits.PaymentInput{}); !errors.Is(err, visits.ErrPaymentRequired) {
		t.Fatalf("missing method: got %v, want ErrPaymentRequired", err)
	}

	// Una visita bonificada se da de alta con total cero.
	got, err := svc.Discharge(ctx, v.ID, visits.PaymentInput{
		Total:  decimal.Zero,
		Method: "cortesía",
	})
	if err != nil {
		t.Fatalf("zero-total discharge: %v", err)
	}
	if got.Status != visits.StatusDischarged || !got.PaymentTotal.IsZero() {
		t.Fatalf("visit = %+v", got)
	}
}

func TestTransition_InvalidFromState(t *testing.T) {
	svc, _, p := newFixture(t)
	ctx := context.Background()

	v, _ := svc.CheckIn(ctx, visits.CheckInInput{PetID: p.ID})
	_, err := svc.ConsultationStart(ctx, v.ID) // sin triaje
	if !errors.Is(err, visits.ErrInvalidStateTransition) {
		t.Fatalf("got %v, want ErrInvalidStateTransition", err)
	}
}
