package pharmacy

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"vetclinic-api/internal/domain/consultations"
	"vetclinic-api/internal/middleware"
	"vetclinic-api/internal/ports/auth"
	"vetclinic-api/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func RegisterRoutes(r chi.Router, ledger *Ledger, monitor *AlertMonitor, issuer *Issuer, engine *Engine) {
	r.Route("/medications", func(mr chi.Router) {
		mr.Post("/", createMedicationHandler(ledger))
		mr.Get("/", listMedicationsHandler(ledger))
		mr.Get("/{medicationID}", getMedicationHandler(ledger))
		mr.Put("/{medicationID}/adjust-stock", adjustStockHandler(ledger, monitor))
		mr.Get("/{medicationID}/movements", listMovementsHandler(ledger))
	})

	r.Get("/stock-alerts", listAlertsHandler(ledger))

	r.Route("/prescriptions", func(pr chi.Router) {
		pr.Post("/", issuePrescriptionHandler(issuer))
		pr.Get("/{prescriptionID}", getPrescriptionHandler(issuer))
		pr.Post("/{prescriptionID}/prepare", preparePrescriptionHandler(issuer))
		pr.Post("/{prescriptionID}/cancel", cancelPrescriptionHandler(issuer))
	})
	r.Get("/consultations/{consultationID}/prescriptions", listPrescriptionsHandler(issuer))

	r.Route("/dispenses", func(dr chi.Router) {
		dr.Post("/", dispenseHandler(engine))
		dr.Get("/{dispenseID}", getDispenseHandler(engine))
	})
}

// ---------- medications ----------

type createMedicationRequest struct {
	Name         string `json:"name"`
	Presentation string `json:"presentation"`
	Unit         string `json:"unit"`
	InitialStock int    `json:"initial_stock"`
	MinStock     int    `json:"min_stock"`
	SalePrice    string `json:"sale_price"` // decimal como string
	CostPrice    string `json:"cost_price"`
	Controlled   bool   `json:"controlled"`
	Refrigerated bool   `json:"refrigerated"`
}

type medicationResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Presentation string    `json:"presentation,omitempty"`
	Unit         string    `json:"unit,omitempty"`
	CurrentStock int       `json:"current_stock"`
	MinStock     int       `json:"min_stock"`
	SalePrice    string    `json:"sale_price"`
	CostPrice    string    `json:"cost_price"`
	Controlled   bool      `json:"controlled"`
	Refrigerated bool      `json:"refrigerated"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func createMedicationHandler(ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RolePharmacy)
		if !ok {
			return
		}

		var req createMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			web.Fail(w, http.StatusBadRequest, "invalid json")
			return
		}

		sale, err := decimal.NewFromString(req.SalePrice)
		if err != nil {
			web.Fail(w, http.StatusBadRequest, "sale_price must be a decimal string")
			return
		}
		cost := decimal.Zero
		if strings.TrimSpace(req.CostPrice) != "" {
			cost, err = decimal.NewFromString(req.CostPrice)
			if err != nil {
				web.Fail(w, http.StatusBadRequest, "cost_price must be a decimal string")
				return
			}
		}

		m, err := ledger.CreateMedication(r.Context(), CreateMedicationInput{
			Name:         req.Name,
			Presentation: req.Presentation,
			Unit:         req.Unit,
			InitialStock: req.InitialStock,
			MinStock:     req.MinStock,
			SalePrice:    sale,
			CostPrice:    cost,
			Controlled:   req.Controlled,
			Refrigerated: req.Refrigerated,
		}, claims.UserID)
		if err != nil {
			writePharmacyError(w, err)
			return
		}
		web.OK(w, http.StatusCreated, toMedicationResponse(m))
	}
}

func listMedicationsHandler(ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetClaims(r.Context()); !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		f := MedicationFilter{Name: strings.TrimSpace(r.URL.Query().Get("name"))}
		if v := r.URL.Query().Get("active"); v != "" {
			b := v == "true"
			f.Active = &b
		}
		f.LowStockOnly = r.URL.Query().Get("low_stock") == "true"

		items, err := ledger.ListMedications(r.Context(), f)
		if err != nil {
			web.Fail(w, http.StatusInternalServerError, "internal error")
			return
		}
		out := make([]medicationResponse, 0, len(items))
		for _, m := range items {
			out = append(out, toMedicationResponse(m))
		}
		web.OK(w, http.StatusOK, out)
	}
}

func getMedicationHandler(ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetClaims(r.Context()); !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		m, err := ledger.GetMedication(r.Context(), chi.URLParam(r, "medicationID"))
		if err != nil {
			web.Fail(w, http.StatusNotFound, "medication not found")
			return
		}
		web.OK(w, http.StatusOK, toMedicationResponse(m))
	}
}

type adjustStockRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type adjustStockResponse struct {
	MedicationID  string `json:"medication_id"`
	PreviousStock int    `json:"previous_stock"`
	NewStock      int    `json:"new_stock"`
	MovementID    string `json:"movement_id"`
}

func adjustStockHandler(ledger *Ledger, monitor *AlertMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RolePharmacy)
		if !ok {
			return
		}

		var req adjustStockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			web.Fail(w, http.StatusBadRequest, "invalid json")
			return
		}
		if strings.TrimSpace(req.Reason) == "" {
			web.Fail(w, http.StatusBadRequest, "reason is required")
			return
		}

		// Ajuste y evaluación de alertas en la misma transacción: un
		// ingreso puede resolver alertas activas y una merma crearlas.
		adj, err := ledger.AdjustStockEvaluated(r.Context(), monitor, chi.URLParam(r, "medicationID"), req.Delta, req.Reason, claims.UserID)
		if err != nil {
			writePharmacyError(w, err)
			return
		}
		web.OK(w, http.StatusOK, adjustStockResponse{
			MedicationID:  adj.MedicationID,
			PreviousStock: adj.PreviousStock,
			NewStock:      adj.NewStock,
			MovementID:    adj.Movement.ID,
		})
	}
}

type movementResponse struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medication_id"`
	Direction    string    `json:"direction"`
	Quantity     int       `json:"quantity"`
	StockBefore  int       `json:"stock_before"`
	StockAfter   int       `json:"stock_after"`
	Reason       string    `json:"reason"`
	DispenseID   *string   `json:"dispense_id,omitempty"`
	ActorID      string    `json:"actor_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func listMovementsHandler(ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRole(w, r, auth.RolePharmacy); !ok {
			return
		}

		f := MovementFilter{}
		if v := r.URL.Query().Get("direction"); v != "" {
			d := MovementDirection(v)
			f.Direction = &d
		}

		items, err := ledger.Movements(r.Context(), chi.URLParam(r, "medicationID"), f)
		if err != nil {
			web.Fail(w, http.StatusInternalServerError, "internal error")
			return
		}
		out := make([]movementResponse, 0, len(items))
		for _, mv := range items {
			out = append(out, movementResponse{
				ID:           mv.ID,
				MedicationID: mv.MedicationID,
				Direction:    string(mv.Direction),
				Quantity:     mv.Quantity,
				StockBefore:  mv.StockBefore,
				StockAfter:   mv.StockAfter,
				Reason:       mv.Reason,
				DispenseID:   mv.DispenseID,
				ActorID:      mv.ActorID,
				CreatedAt:    mv.CreatedAt,
			})
		}
		web.OK(w, http.StatusOK, out)
	}
}

type alertResponse struct {
	ID           string     `json:"id"`
	MedicationID string     `json:"medication_id"`
	Type         string     `json:"type"`
	Priority     string     `json:"priority"`
	Message      string     `json:"message"`
	StockLevel   int        `json:"stock_level"`
	MinStock     int        `json:"min_stock"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

func listAlertsHandler(ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetClaims(r.Context()); !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		f := AlertFilter{MedicationID: strings.TrimSpace(r.URL.Query().Get("medication_id"))}
		if v := r.URL.Query().Get("status"); v != "" {
			st := AlertStatus(v)
			f.Status = &st
		}
		if v := r.URL.Query().Get("type"); v != "" {
			t := AlertType(v)
			f.Type = &t
		}

		items, err := ledger.Alerts(r.Context(), f)
		if err != nil {
			web.Fail(w, http.StatusInternalServerError, "internal error")
			return
		}
		out := make([]alertResponse, 0, len(items))
		for _, a := range items {
			out = append(out, alertResponse{
				ID:           a.ID,
				MedicationID: a.MedicationID,
				Type:         string(a.Type),
				Priority:     string(a.Priority),
				Message:      a.Message,
				StockLevel:   a.StockLevel,
				MinStock:     a.MinStock,
				Status:       string(a.Status),
				CreatedAt:    a.CreatedAt,
				ResolvedAt:   a.ResolvedAt,
			})
		}
		web.OK(w, http.StatusOK, out)
	}
}

// ---------- prescriptions ----------

type issueItemRequest struct {
	MedicationID string `json:"medication_id"`
	Quantity     int    `json:"quantity"`
	Dosage       string `json:"dosage"`
}

type issuePrescriptionRequest struct {
	ConsultationID string             `json:"consultation_id"`
	Items          []issueItemRequest `json:"items"`
	Notes          string             `json:"notes"`
	AllowShortage  bool               `json:"allow_shortage"`
}

type prescriptionItemResponse struct {
	ID           string `json:"id"`
	MedicationID string `json:"medication_id"`
	Quantity     int    `json:"quantity"`
	Dosage       string `json:"dosage,omitempty"`
	Position     int    `json:"position"`
}

type prescriptionResponse struct {
	ID             string                     `json:"id"`
	ConsultationID string                     `json:"consultation_id"`
	DoctorID       string                     `json:"doctor_id"`
	Status         string                     `json:"status"`
	Notes          string                     `json:"notes,omitempty"`
	Items          []prescriptionItemResponse `json:"items,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

func issuePrescriptionHandler(issuer *Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RoleDoctor)
		if !ok {
			return
		}

		var req issuePrescriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			web.Fail(w, http.StatusBadRequest, "invalid json")
			return
		}

		items := make([]IssueItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, IssueItem{
				MedicationID: it.MedicationID,
				Quantity:     it.Quantity,
				Dosage:       it.Dosage,
			})
		}

		p, pitems, err := issuer.Issue(r.Context(), IssueInput{
			ConsultationID: req.ConsultationID,
			Items:          items,
			Notes:          req.Notes,
			AllowShortage:  req.AllowShortage,
		}, claims.UserID)
		if err != nil {
			writePharmacyError(w, err)
			return
		}
		web.OK(w, http.StatusCreated, toPrescriptionResponse(p, pitems))
	}
}

func getPrescriptionHandler(issuer *Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetClaims(r.Context()); !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		p, items, err := issuer.Get(r.Context(), chi.URLParam(r, "prescriptionID"))
		if err != nil {
			web.Fail(w, http.StatusNotFound, "prescription not found")
			return
		}
		web.OK(w, http.StatusOK, toPrescriptionResponse(p, items))
	}
}

func preparePrescriptionHandler(issuer *Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRole(w, r, auth.RolePharmacy); !ok {
			return
		}

		p, err := issuer.MarkInPreparation(r.Context(), chi.URLParam(r, "prescriptionID"))
		if err != nil {
			writePharmacyError(w, err)
			return
		}
		web.OK(w, http.StatusOK, toPrescriptionResponse(p, nil))
	}
}

func cancelPrescriptionHandler(issuer *Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRole(w, r, auth.RoleDoctor, auth.RolePharmacy); !ok {
			return
		}

		p, err := issuer.Cancel(r.Context(), chi.URLParam(r, "prescriptionID"))
		if err != nil {
			writePharmacyError(w, err)
			return
		}
		web.OK(w, http.StatusOK, toPrescriptionResponse(p, nil))
	}
}

func listPrescriptionsHandler(issuer *Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetClaims(r.Context()); !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		items, err := issuer.ListByConsultation(r.Context(), chi.URLParam(r, "consultationID"))
		if err != nil {
			web.Fail(w, http.StatusInternalServerError, "internal error")
			return
		}
		out := make([]prescriptionResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toPrescriptionResponse(p, nil))
		}
		web.OK(w, http.StatusOK, out)
	}
}

// ---------- dispenses ----------

type dispenseItemRequest struct {
	PrescriptionItemID     string `json:"prescription_item_id"`
	Quantity               int    `json:"quantity"`
	SubstituteMedicationID string `json:"substitute_medication_id,omitempty"`
	SubstitutionReason     string `json:"substitution_reason,omitempty"`
	LotNumber              string `json:"lot_number,omitempty"`
}

type dispenseRequest struct {
	PrescriptionID string                `json:"prescription_id"`
	Signature      string                `json:"signature"`
	Notes          string                `json:"notes"`
	Items          []dispenseItemRequest `json:"items"`
}

type dispenseItemResponse struct {
	ID                 string `json:"id"`
	PrescriptionItemID string `json:"prescription_item_id"`
	MedicationID       string `json:"medication_id"`
	Quantity           int    `json:"quantity"`
	UnitPrice          string `json:"unit_price"`
	Subtotal           string `json:"subtotal"`
	Substituted        bool   `json:"substituted"`
	SubstitutionReason string `json:"substitution_reason,omitempty"`
	LotNumber          string `json:"lot_number,omitempty"`
}

type dispenseResponse struct {
	ID             string                 `json:"id"`
	PrescriptionID string                 `json:"prescription_id"`
	PharmacistID   string                 `json:"pharmacist_id"`
	Signature      string                 `json:"signature,omitempty"`
	Notes          string                 `json:"notes,omitempty"`
	Total          string                 `json:"total"`
	Items          []dispenseItemResponse `json:"items"`
	CreatedAt      time.Time              `json:"created_at"`
}

func dispenseHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RolePharmacy)
		if !ok {
			return
		}

		var req dispenseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			web.Fail(w, http.StatusBadRequest, "invalid json")
			return
		}

		items := make([]DispenseItemInput, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, DispenseItemInput{
				PrescriptionItemID:     it.PrescriptionItemID,
				Quantity:               it.Quantity,
				SubstituteMedicationID: it.SubstituteMedicationID,
				SubstitutionReason:     it.SubstitutionReason,
				LotNumber:              it.LotNumber,
			})
		}

		d, ditems, err := engine.Dispense(r.Context(), DispenseInput{
			PrescriptionID: req.PrescriptionID,
			Signature:      req.Signature,
			Notes:          req.Notes,
			Items:          items,
		}, claims.UserID)
		if err != nil {
			writePharmacyError(w, err)
			return
		}
		web.OK(w, http.StatusCreated, toDispenseResponse(d, ditems))
	}
}

func getDispenseHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRole(w, r, auth.RolePharmacy); !ok {
			return
		}

		d, items, err := engine.GetDispense(r.Context(), chi.URLParam(r, "dispenseID"))
		if err != nil {
			web.Fail(w, http.StatusNotFound, "dispense not found")
			return
		}
		web.OK(w, http.StatusOK, toDispenseResponse(d, items))
	}
}

// ---------- helpers ----------

func requireRole(w http.ResponseWriter, r *http.Request, roles ...auth.Role) (auth.Claims, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		web.Fail(w, http.StatusUnauthorized, "unauthorized")
		return auth.Claims{}, false
	}
	if !claims.HasRole(roles...) {
		web.Fail(w, http.StatusForbidden, "forbidden")
		return auth.Claims{}, false
	}
	return claims, true
}

func writePharmacyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		web.Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInsufficientStockAdvisory):
		web.Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		web.Fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, consultations.ErrNotFound):
		web.Fail(w, http.StatusNotFound, "consultation not found")
	case errors.Is(err, ErrAlreadyDispensed), errors.Is(err, ErrPrescriptionCancelled),
		errors.Is(err, ErrConsultationClosed), errors.Is(err, ErrStateConflict):
		web.Fail(w, http.StatusConflict, err.Error())
	default:
		web.Fail(w, http.StatusInternalServerError, "internal error")
	}
}

func toMedicationResponse(m Medication) medicationResponse {
	return medicationResponse{
		ID:           m.ID,
		Name:         m.Name,
		Presentation: m.Presentation,
		Unit:         m.Unit,
		CurrentStock: m.CurrentStock,
		MinStock:     m.MinStock,
		SalePrice:    m.SalePrice.StringFixed(2),
		CostPrice:    m.CostPrice.StringFixed(2),
		Controlled:   m.Controlled,
		Refrigerated: m.Refrigerated,
		Active:       m.Active,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toPrescriptionResponse(p Prescription, items []PrescriptionItem) prescriptionResponse {
	out := prescriptionResponse{
		ID:             p.ID,
		ConsultationID: p.ConsultationID,
		DoctorID:       p.DoctorID,
		Status:         string(p.Status),
		Notes:          p.Notes,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	for _, it := range items {
		out.Items = append(out.Items, prescriptionItemResponse{
			ID:           it.ID,
			MedicationID: it.MedicationID,
			Quantity:     it.Quantity,
			Dosage:       it.Dosage,
			Position:     it.Position,
		})
	}
	return out
}

func toDispenseResponse(d Dispense, items []DispenseItem) dispenseResponse {
	out := dispenseResponse{
		ID:             d.ID,
		PrescriptionID: d.PrescriptionID,
		PharmacistID:   d.PharmacistID,
		Signature:      d.Signature,
		Notes:          d.Notes,
		Total:          d.Total.StringFixed(2),
		Items:          make([]dispenseItemResponse, 0, len(items)),
		CreatedAt:      d.CreatedAt,
	}
	for _, it := range items {
		out.Items = append(out.Items, dispenseItemResponse{
			ID:                 it.ID,
			PrescriptionItemID: it.PrescriptionItemID,
			MedicationID:       it.MedicationID,
			Quantity:           it.Quantity,
			UnitPrice:          it.UnitPrice.StringFixed(2),
			Subtotal:           it.Subtotal.StringFixed(2),
			Substituted:        it.Substituted,
			SubstitutionReason: it.SubstitutionReason,
			LotNumber:          it.LotNumber,
		})
	}
	return out
}
