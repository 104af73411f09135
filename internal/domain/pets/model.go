package pets

import "time"

// Species define las especies soportadas.
type Species string

const (
	SpeciesDog   Species = "dog"
	SpeciesCat   Species = "cat"
	SpeciesOther Species = "other"
)

// Sex define el sexo de la mascota.
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

// Estado refleja dónde está el paciente dentro del flujo de la clínica.
// Solo la máquina de estados de visitas lo muta; el perfil nunca lo toca.
type Estado string

const (
	EstadoEnCasa            Estado = "EN_CASA"
	EstadoEnSala            Estado = "EN_SALA"
	EstadoEsperandoConsulta Estado = "ESPERANDO_CONSULTA"
	EstadoEnConsulta        Estado = "EN_CONSULTA"
	EstadoEnEstudios        Estado = "EN_ESTUDIOS"
	EstadoEsperaCirugia     Estado = "EN_ESPERA_CIRUGIA"
	EstadoEnCirugia         Estado = "EN_CIRUGIA"
	EstadoHospitalizado     Estado = "HOSPITALIZADO"
	EstadoPorAlta           Estado = "POR_ALTA"
	EstadoEnFarmacia        Estado = "EN_FARMACIA"
	EstadoPorPagar          Estado = "POR_PAGAR"
)

// Pet representa el perfil de un paciente de la clínica.
// Nunca se borra; se desactiva con Active=false.
type Pet struct {
	ID      string
	OwnerID string

	Name    string
	Species Species
	Breed   string
	Sex     Sex

	BirthDate *time.Time
	WeightKg  float64
	Microchip string
	Notes     string

	Estado Estado
	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
