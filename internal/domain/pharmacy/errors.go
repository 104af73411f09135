package pharmacy

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")

	// ErrInsufficientStock es la falla vinculante: se detecta dentro de la
	// transacción y revierte todo el despacho.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInsufficientStockAdvisory es la falla blanda de la emisión de
	// recetas; el médico puede forzar con allow_shortage.
	ErrInsufficientStockAdvisory = errors.New("insufficient stock for prescription")

	ErrAlreadyDispensed      = errors.New("prescription already dispensed")
	ErrPrescriptionCancelled = errors.New("prescription cancelled")
	ErrConsultationClosed    = errors.New("consultation is not open")
	ErrStateConflict         = errors.New("operation invalid for current state")
)
