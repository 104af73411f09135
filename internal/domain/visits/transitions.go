package visits

import (
	"fmt"

	"vetclinic-api/internal/domain/pets"
)

// Event identifica cada transición posible de la visita.
type Event string

const (
	EventTriageComplete       Event = "triage-complete"
	EventConsultationStart    Event = "consultation-start"
	EventConsultationPharmacy Event = "consultation-complete-pharmacy"
	EventConsultationPayment  Event = "consultation-complete-payment"
	EventStudiesRequested     Event = "studies-requested"
	EventStudiesComplete      Event = "studies-complete"
	EventSurgeryScheduled     Event = "surgery-scheduled"
	EventSurgeryStart         Event = "surgery-start"
	EventSurgeryAmbulatory    Event = "surgery-complete-ambulatory"
	EventSurgeryHospitalized  Event = "surgery-complete-hospitalized"
	EventDischargeReady       Event = "hospital-discharge-ready"
	EventWardRelease          Event = "ward-release"
	EventDispenseComplete     Event = "dispense-complete"
	EventDischarge            Event = "discharge"
)

// transition: estados origen permitidos -> (estado visita, estado mascota).
// Toda mutación de Visit.Status y Pet.Estado pasa por esta tabla; los
// handlers nunca escriben estados sueltos.
type transition struct {
	from []Status
	to   Status
	pet  pets.Estado
}

var transitions = map[Event]transition{
	EventTriageComplete: {
		from: []Status{StatusArrived},
		to:   StatusTriagedWaiting,
		pet:  pets.EstadoEsperandoConsulta,
	},
	EventConsultationStart: {
		from: []Status{StatusTriagedWaiting},
		to:   StatusInConsultation,
		pet:  pets.EstadoEnConsulta,
	},
	EventConsultationPharmacy: {
		from: []Status{StatusInConsultation},
		to:   StatusAwaitingPharmacy,
		pet:  pets.EstadoEnFarmacia,
	},
	EventConsultationPayment: {
		from: []Status{StatusInConsultation},
		to:   StatusReadyForPayment,
		pet:  pets.EstadoPorPagar,
	},
	EventStudiesRequested: {
		from: []Status{StatusInConsultation},
		to:   StatusAwaitingStudies,
		pet:  pets.EstadoEnEstudios,
	},
	EventStudiesComplete: {
		// Los resultados devuelven la visita al médico, que decide el cierre.
		from: []Status{StatusAwaitingStudies},
		to:   StatusInConsultation,
		pet:  pets.EstadoEnConsulta,
	},
	EventSurgeryScheduled: {
		from: []Status{StatusInConsultation},
		to:   StatusAwaitingSurgery,
		pet:  pets.EstadoEsperaCirugia,
	},
	EventSurgeryStart: {
		from: []Status{StatusAwaitingSurgery},
		to:   StatusInSurgery,
		pet:  pets.EstadoEnCirugia,
	},
	EventSurgeryAmbulatory: {
		from: []Status{StatusInSurgery},
		to:   StatusReadyForPayment,
		pet:  pets.EstadoPorPagar,
	},
	EventSurgeryHospitalized: {
		from: []Status{StatusInSurgery},
		to:   StatusHospitalized,
		pet:  pets.EstadoHospitalizado,
	},
	EventDischargeReady: {
		from: []Status{StatusHospitalized},
		to:   StatusReadyForDischarge,
		pet:  pets.EstadoPorAlta,
	},
	EventWardRelease: {
		from: []Status{StatusReadyForDischarge},
		to:   StatusReadyForPayment,
		pet:  pets.EstadoPorPagar,
	},
	EventDispenseComplete: {
		from: []Status{StatusAwaitingPharmacy},
		to:   StatusReadyForPayment,
		pet:  pets.EstadoPorPagar,
	},
	EventDischarge: {
		from: []Status{StatusReadyForPayment},
		to:   StatusDischarged,
		pet:  pets.EstadoEnCasa,
	},
}

// apply valida y resuelve la transición. No muta nada: devuelve el estado
// destino de visita y mascota, o ErrInvalidStateTransition.
func apply(current Status, ev Event) (Status, pets.Estado, error) {
	t, ok := transitions[ev]
	if !ok {
		return "", "", fmt.Errorf("%w: unknown event %q", ErrInvalidStateTransition, ev)
	}
	for _, f := range t.from {
		if f == current {
			return t.to, t.pet, nil
		}
	}
	return "", "", fmt.Errorf("%w: event %q not allowed from %q", ErrInvalidStateTransition, ev, current)
}
