package memory

import (
	"sync"

	"vetclinic-api/internal/domain/consultations"
	"vetclinic-api/internal/domain/labs"
	"vetclinic-api/internal/domain/pets"
	"vetclinic-api/internal/domain/pharmacy"
	"vetclinic-api/internal/domain/visits"
)

// Store guarda todo el estado en maps bajo un solo mutex. Un solo lock
// porque varias operaciones tocan más de una entidad a la vez (visita +
// mascota, despacho + stock + alertas) y deben ser atómicas igual que en
// postgres.
type Store struct {
	mu sync.Mutex

	pets          map[string]pets.Pet
	visits        map[string]visits.Visit
	consultations map[string]consultations.Consultation
	labRequests   map[string]labs.LabRequest

	medications       map[string]pharmacy.Medication
	movements         []pharmacy.StockMovement
	alerts            map[string]pharmacy.StockAlert
	prescriptions     map[string]pharmacy.Prescription
	prescriptionItems map[string][]pharmacy.PrescriptionItem
	dispenses         map[string]pharmacy.Dispense
	dispenseItems     map[string][]pharmacy.DispenseItem
}

func NewStore() *Store {
	return &Store{
		pets:              make(map[string]pets.Pet),
		visits:            make(map[string]visits.Visit),
		consultations:     make(map[string]consultations.Consultation),
		labRequests:       make(map[string]labs.LabRequest),
		medications:       make(map[string]pharmacy.Medication),
		alerts:            make(map[string]pharmacy.StockAlert),
		prescriptions:     make(map[string]pharmacy.Prescription),
		prescriptionItems: make(map[string][]pharmacy.PrescriptionItem),
		dispenses:         make(map[string]pharmacy.Dispense),
		dispenseItems:     make(map[string][]pharmacy.DispenseItem),
	}
}

func (s *Store) Pets() pets.Repository                   { return &petRepo{s: s} }
func (s *Store) Visits() visits.Repository               { return &visitRepo{s: s} }
func (s *Store) Consultations() consultations.Repository { return &consultationRepo{s: s} }
func (s *Store) Labs() labs.Repository                   { return &labRepo{s: s} }
func (s *Store) Pharmacy() pharmacy.Repository           { return &pharmacyRepo{s: s} }
