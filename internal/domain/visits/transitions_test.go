package visits

import (
	"errors"
	"testing"

	"vetclinic-api/internal/domain/pets"
)

func TestApply_LegalTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    Status
		ev      Event
		want    Status
		wantPet pets.Estado
	}{
		{"triage", StatusArrived, EventTriageComplete, StatusTriagedWaiting, pets.EstadoEsperandoConsulta},
		{"consultation start", StatusTriagedWaiting, EventConsultationStart, StatusInConsultation, pets.EstadoEnConsulta},
		{"consultation to pharmacy", StatusInConsultation, EventConsultationPharmacy, StatusAwaitingPharmacy, pets.EstadoEnFarmacia},
		{"consultation to payment", StatusInConsultation, EventConsultationPayment, StatusReadyForPayment, pets.EstadoPorPagar},
		{"studies requested", StatusInConsultation, EventStudiesRequested, StatusAwaitingStudies, pets.EstadoEnEstudios},
		{"studies back to doctor", StatusAwaitingStudies, EventStudiesComplete, StatusInConsultation, pets.EstadoEnConsulta},
		{"surgery scheduled", StatusInConsultation, EventSurgeryScheduled, StatusAwaitingSurgery, pets.EstadoEsperaCirugia},
		{"surgery start", StatusAwaitingSurgery, EventSurgeryStart, StatusInSurgery, pets.EstadoEnCirugia},
		{"surgery ambulatory", StatusInSurgery, EventSurgeryAmbulatory, StatusReadyForPayment, pets.EstadoPorPagar},
		{"surgery to ward", StatusInSurgery, EventSurgeryHospitalized, StatusHospitalized, pets.EstadoHospitalizado},
		{"ward discharge ready", StatusHospitalized, EventDischargeReady, StatusReadyForDischarge, pets.EstadoPorAlta},
		{"ward release", StatusReadyForDischarge, EventWardRelease, StatusReadyForPayment, pets.EstadoPorPagar},
		{"dispense complete", StatusAwaitingPharmacy, EventDispenseComplete, StatusReadyForPayment, pets.EstadoPorPagar},
		{"discharge", StatusReadyForPayment, EventDischarge, StatusDischarged, pets.EstadoEnCasa},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, gotPet, err := apply(tc.from, tc.ev)
			if err != nil {
				t.Fatalf("apply(%s, %s): unexpected error: %v", tc.from, tc.ev, err)
			}
			if got != tc.want {
				t.Fatalf("apply(%s, %s): got %s, want %s", tc.from, tc.ev, got, tc.want)
			}
			if gotPet != tc.wantPet {
				t.Fatalf("apply(%s, %s): pet estado %s, want %s", tc.from, tc.ev, gotPet, tc.wantPet)
			}
		})
	}
}

func TestApply_IllegalTransitions(t *testing.T) {
	cases := []struct {
		name string
		from Status
		ev   Event
	}{
		{"discharge without payment stage", StatusArrived, EventDischarge},
		{"skip triage", StatusArrived, EventConsultationStart},
		{"consultation twice", StatusAwaitingPharmacy, EventConsultationStart},
		{"dispense when not awaiting pharmacy", StatusInConsultation, EventDispenseComplete},
		{"surgery start without scheduling", StatusInConsultation, EventSurgeryStart},
		{"event after terminal state", StatusDischarged, EventTriageComplete},
		{"unknown event", StatusArrived, Event("teleport")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := apply(tc.from, tc.ev)
			if !errors.Is(err, ErrInvalidStateTransition) {
				t.Fatalf("apply(%s, %s): got %v, want ErrInvalidStateTransition", tc.from, tc.ev, err)
			}
		})
	}
}

func TestApply_EveryEventHasTargets(t *testing.T) {
	for ev, tr := range transitions {
		if len(tr.from) == 0 {
			t.Errorf("event %q has no source states", ev)
		}
		if tr.to == "" || tr.pet == "" {
			t.Errorf("event %q has incomplete targets", ev)
		}
	}
}
