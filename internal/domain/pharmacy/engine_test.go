package pharmacy_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"vetclinic-api/internal/adapters/storage/memory"
	"vetclinic-api/internal/domain/pharmacy"

	"github.com/shopspring/decimal"
)

type engineFixture struct {
	ledger *pharmacy.Ledger
	issuer *pharmacy.Issuer
	engine *pharmacy.Engine
	repo   pharmacy.Repository
	dir    *fakeDirectory
	flow   *fakeFlow
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	store := memory.NewStore()
	repo := store.Pharmacy()
	ledger := pharmacy.NewLedger(repo)
	monitor := pharmacy.NewAlertMonitor(nil, nil, "")
	dir := &fakeDirectory{visitID: "visit-1", doctorID: "doc-1", open: true}
	flow := &fakeFlow{}
	return &engineFixture{
		ledger: ledger,
		issuer: pharmacy.NewIssuer(repo, ledger, dir, flow),
		engine: pharmacy.NewEngine(repo, ledger, monitor, dir, flow, nil, nil),
		repo:   repo,
		dir:    dir,
		flow:   flow,
	}
}

func (f *engineFixture) issue(t *testing.T, consultationID string, items ...pharmacy.IssueItem) (pharmacy.Prescription, []pharmacy.PrescriptionItem) {
	t.Helper()
	p, pitems, err := f.issuer.Issue(context.Background(), pharmacy.IssueInput{
		ConsultationID: consultationID,
		Items:          items,
		AllowShortage:  true,
	}, "doc-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return p, pitems
}

func TestDispense_HappyPath(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	med := createMedication(t, f.ledger, "Amoxicilina", 150, 20, "3.50")
	p, items := f.issue(t, "cons-1", pharmacy.IssueItem{MedicationID: med.ID, Quantity: 50})

	d, ditems, err := f.engine.Dispense(ctx, pharmacy.DispenseInput{
		PrescriptionID: p.ID,
		Signature:      "QF Rojas",
		Items: []pharmacy.DispenseItemInput{
			{PrescriptionItemID: items[0].ID, Quantity: 50, LotNumber: "L-2026-03"},
		},
	}, "pharm-1")
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}

	// Total = 50 * 3.50
	if !d.Total.Equal(decimal.RequireFromString("175.00")) {
		t.Fatalf("total = %s, want 175.00", d.Total)
	}
	if len(ditems) != 1 || !ditems[0].UnitPrice.Equal(decimal.RequireFromString("3.50")) {
		t.Fatalf("items = %+v", ditems)
	}

	got, _ := f.ledger.GetMedication(ctx, med.ID)
	if got.CurrentStock != 100 {
		t.Fatalf("stock = %d, want 100", got.CurrentStock)
	}

	// Movimiento OUT ligado al despacho.
	movs, _ := f.ledger.Movements(ctx, med.ID, pharmacy.MovementFilter{})
	out := movs[0]
	if out.Direction != pharmacy.MovementOut || out.Quantity != 50 {
		t.Fatalf("movement = %+v", out)
	}
	if out.DispenseID == nil || *out.DispenseID != d.ID {
		t.Fatalf("movement not linked to dispense: %+v", out)
	}
	if out.StockBefore != 150 || out.StockAfter != 100 {
		t.Fatalf("audit = before %d after %d", out.StockBefore, out.StockAfter)
	}

	gotP, _, _ := f.issuer.Get(ctx, p.ID)
	if gotP.Status != pharmacy.PrescriptionDespachada {
		t.Fatalf("prescription status = %s", gotP.Status)
	}

	// Última receta de la consulta: la visita se libera.
	if f.flow.count() != 1 {
		t.Fatalf("flow calls = %d, want 1", f.flow.count())
	}
}

func TestDispense_PriceTakenAtDispenseTime(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	med := createMedication(t, f.ledger, "Meloxicam", 30, 5, "8.00")
	p, items := f.issue(t, "cons-1", pharmacy.IssueItem{MedicationID: med.ID, Quantity: 2})

	// El precio sube entre emisión y despacho.
	m, _ := f.ledger.GetMedication(ctx, med.ID)
	m.SalePrice = decimal.RequireFromString("9.50")
	if err := f.repo.UpdateMedication(ctx, m); err != nil {
		t.Fatalf("update price: %v", err)
	}

	d, _, err := f.engine.Dispense(ctx, pharmacy.DispenseInput{
		PrescriptionID: p.ID,
		Items:          []pharmacy.DispenseItemInput{{PrescriptionItemID: items[0].ID, Quantity: 2}},
	}, "pharm-1")
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}
	if !d.Total.Equal(decimal.RequireFromString("19.00")) {
		t.Fatalf("total = %s, want 19.00 (price at dispense)", d.Total)
	}
}

func TestDispense_SubstitutionNeedsReason(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	med := createMedication(t, f.ledger, "Amoxicilina", 10, 2, "3.50")
	sub := createMedication(t, f.ledger, "Amoxicilina genérica", 10, 2, "2.00")
	p, items := f.issue(t, "cons-1", pharmacy.IssueItem{MedicationID: med.ID, Quantity: 3})

	_, _, err := f.engine.Dispense(ctx, pharmacy.DispenseInput{
		PrescriptionID: p.ID,
		Items: []pharmacy.DispenseItemInput{{
			PrescriptionItemID:     items[0].ID,
			Quantity:               3,
			SubstituteMedicationID: sub.ID,
		}},
	}, "pharm-1")
	if !errors.Is(err, pharmacy.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput (missing reason)", err)
	}

	d, ditems, err := f.engine.Dispense(ctx, pharmacy.DispenseInput{
		PrescriptionID: p.ID,
		Items: []pharmacy.DispenseItemInput{{
			PrescriptionItemID:     items[0].ID,
			Quantity:               3,
			SubstituteMedicationID: sub.ID,
			SubstitutionReason:     "sin stock de marca",
		}},
	}, "pharm-1")
	if err != nil {
		t.Fatalf("dispense with substitution: %v", err)
	}
	if !ditems[0].Substituted || ditems[0].MedicationID != sub.ID {
		t.Fatalf("item = %+v", ditems[0])
	}
	// El precio es el del sustituto.
	if !d.Total.Equal(decimal.RequireFromString("6.00")) {
		t.Fatalf("total = %s, want 6.00", d.Total)
	}

	// Se descuenta el sustituto, no el recetado.
	gotOrig, _ := f.ledger.GetMedication(ctx, med.ID)
	gotSub, _ := f.ledger.GetMedication(ctx, sub.ID)
	if gotOrig.CurrentStock != 10 || gotSub.CurrentStock != 7 {
		t.Fatalf("stock orig=%d sub=%d", gotOrig.CurrentStock, gotSub.CurrentStock)
	}
}

func TestDispense_MidwayFailureRollsBackEverything(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	ok := createMedication(t, f.ledger, "Cefalexina", 40, 5, "4.25")
	scarce := createMedication(t, f.ledger, "Insulina", 2, 10, "40.00")
	p, items := f.issue(t, "cons-1",
		pharmacy.IssueItem{MedicationID: ok.ID, Quantity: 10},
		pharmacy.IssueItem{MedicationID: scarce.ID, Quantity: 5},
	)

	_, _, err := f.engine.Dispense(ctx, pharmacy.DispenseInput{
		PrescriptionID: p.ID,
		Items: []pharmacy.DispenseItemInput{
			{PrescriptionItemID: items[0].ID, Quantity: 10},
			{PrescriptionItemID: items[1].ID, Quantity: 5},
		},
	}, "pharm-1")
	if !errors.Is(err, pharmacy.ErrInsufficientStock) {
		t.Fatalf("got %v, want ErrInsufficientStock", err)
	}

	// El primer ítem ya había descontado: todo debe volver atrás.
	gotOK, _ := f.ledger.GetMedication(ctx, ok.ID)
	if gotOK.CurrentStock != 40 {
		t.Fatalf("stock = %d, want 40 (rolled back)", gotOK.CurrentStock)
	}
	movs, _ := f.ledger.Movements(ctx, ok.ID, pharmacy.MovementFilter{})
	if len(movs) != 1 {
		t.Fatalf("movements = %d, want 1 (only initial)", len(movs))
	}

	gotP, _, _ := f.issuer.Get(ctx, p.ID)
	if gotP.Status != pharmacy.PrescriptionPendiente {
		t.Fatalf("prescription status = %s, want PENDIENTE", gotP.Status)
	}
	if f.flow.count() != 0 {
		t.Fatalf("flow called on failed dispense")
	}
}

func TestDispense_TerminalStatesRejected(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	med := createMedication(t, f.ledger, "Omeprazol", 20, 2, "2.00")
	p, items := f.issue(t, "cons-1", pharmacy.IssueItem{MedicationID: med.ID, Quantity: 1})

	in := pharmacy.DispenseInput{
		PrescriptionID: p.ID,
		Items:          []pharmacy.DispenseItemInput{{PrescriptionItemID: items[0].ID, Quantity: 1}},
	}
	if _, _, err := f.engine.Dispense(ctx, in, "pharm-1"); err != nil {
		t.Fatalf("first dispense: %v", err)
	}
	if _, _, err := f.engine.Dispense(ctx, in, "pharm-1"); !errors.Is(err, pharmacy.ErrAlreadyDispensed) {
		t.Fatalf("got %v, want ErrAlreadyDispensed", err)
	}

	p2, items2 := f.issue(t, "cons-2", pharmacy.IssueItem{MedicationID: med.ID, Quantity: 1})
	if _, err := f.issuer.Cancel(ctx, p2.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, _, err := f.engine.Dispense(ctx, pharmacy.DispenseInput{
		PrescriptionID: p2.ID,
		Items:          []pharmacy.DispenseItemInput{{PrescriptionItemID: items2[0].ID, Quantity: 1}},
	}, "pharm-1")
	if !errors.Is(err, pharmacy.ErrPrescriptionCancelled) {
		t.Fatalf("got %v, want ErrPrescriptionCancelled", err)
	}
}

func TestDispense_ForeignItemRejected(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	med := createMedication(t, f.ledger, "Tramadol", 20, 2, "15.00")
	p1, _ := f.issue(t, "cons-1", pharmacy.IssueItem{MedicationID: med.ID, Quantity: 1})
	_, items2 := f.issue(t, "cons-2", pharmacy.IssueItem{MedicationID: med.ID, Quantity: 1})

	_, _, err := f.engine.Dispense(ctx, pharmacy.DispenseInput{
		PrescriptionID: p1.ID,
		Items:          []pharmacy.DispenseItemInput{{PrescriptionItemID: items2[0].ID, Quantity: 1}},
	}, "pharm-1")
	if !errors.Is(err, pharmacy.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestDispense_RejectsPartialItemCoverage(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	m1 := createMedication(t, f.ledger, "Amoxicilina", 100, 20, "3.50")
	m2 := createMedication(t, f.ledger, "Meloxicam", 50, 10, "8.00")
	p, items := f.issue(t, "cons-1",
		pharmacy.IssueItem{MedicationID: m1.ID, Quantity: 10},
		pharmacy.IssueItem{MedicationID: m2.ID, Quantity: 5},
	)

	// Despachar solo uno de los dos ítems no es un despacho válido.
	_, _, err := f.engine.Dispense(ctx, pharmacy.DispenseInput{
		PrescriptionID: p.ID,
		Items:          []pharmacy.DispenseItemInput{{PrescriptionItemID: items[0].ID, Quantity: 10}},
	}, "pharm-1")
	if !errors.Is(err, pharmacy.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}

	// Nada quedó persistido y la receta sigue abierta.
	gotP, _, _ := f.issuer.Get(ctx, p.ID)
	if gotP.Status != pharmacy.PrescriptionPendiente {
		t.Fatalf("prescription status = %s, want PENDIENTE", gotP.Status)
	}
	got, _ := f.ledger.GetMedication(ctx, m1.ID)
	if got.CurrentStock != 100 {
		t.Fatalf("stock = %d, want 100 (rolled back)", got.CurrentStock)
	}
	if f.flow.count() != 0 {
		t.Fatalf("flow calls = %d, want 0", f.flow.count())
	}

	// Con los dos ítems el despacho procede.
	if _, _, err := f.engine.Dispense(ctx, pharmacy.DispenseInput{
		PrescriptionID: p.ID,
		Items: []pharmacy.DispenseItemInput{
			{PrescriptionItemID: items[0].ID, Quantity: 10},
			{PrescriptionItemID: items[1].ID, Quantity: 5},
		},
	}, "pharm-1"); err != nil {
		t.Fatalf("full dispense: %v", err)
	}
	gotP, _, _ = f.issuer.Get(ctx, p.ID)
	if gotP.Status != pharmacy.PrescriptionDespachada {
		t.Fatalf("prescription status = %s, want DESPACHADA", gotP.Status)
	}
}

func TestDispense_CreatesAlertWhenCrossingMin(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	med := createMedication(t, f.ledger, "Amoxicilina", 25, 20, "3.50")
	p, items := f.issue(t, "cons-1", pharmacy.IssueItem{MedicationID: med.ID, Quantity: 10})

	if _, _, err := f.engine.Dispense(ctx, pharmacy.DispenseInput{
		PrescriptionID: p.ID,
		Items:          []pharmacy.DispenseItemInput{{PrescriptionItemID: items[0].ID, Quantity: 10}},
	}, "pharm-1"); err != nil {
		t.Fatalf("dispense: %v", err)
	}

	got := activeAlerts(t, f.ledger, med.ID)
	if len(got) != 1 || got[0].Type != pharmacy.AlertLowStock {
		t.Fatalf("alerts = %+v, want LOW_STOCK", got)
	}
	if got[0].StockLevel != 15 {
		t.Fatalf("alert stock level = %d, want 15", got[0].StockLevel)
	}
}

func TestDispense_VisitReleasedOnlyAfterLastPrescription(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	med := createMedication(t, f.ledger, "Cefalexina", 50, 5, "4.25")
	p1, items1 := f.issue(t, "cons-1", pharmacy.IssueItem{MedicationID: med.ID, Quantity: 1})
	p2, items2 := f.issue(t, "cons-1", pharmacy.IssueItem{MedicationID: med.ID, Quantity: 2})

	if _, _, err := f.engine.Dispense(ctx, pharmacy.DispenseInput{
		PrescriptionID: p1.ID,
		Items:          []pharmacy.DispenseItemInput{{PrescriptionItemID: items1[0].ID, Quantity: 1}},
	}, "pharm-1"); err != nil {
		t.Fatalf("dispense p1: %v", err)
	}
	if f.flow.count() != 0 {
		t.Fatalf("visit released with p2 still open")
	}

	if _, _, err := f.engine.Dispense(ctx, pharmacy.DispenseInput{
		PrescriptionID: p2.ID,
		Items:          []pharmacy.DispenseItemInput{{PrescriptionItemID: items2[0].ID, Quantity: 2}},
	}, "pharm-1"); err != nil {
		t.Fatalf("dispense p2: %v", err)
	}
	if f.flow.count() != 1 {
		t.Fatalf("flow calls = %d, want 1", f.flow.count())
	}
}

func TestDispense_ConcurrentOverSharedStock(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// Stock para uno solo de los dos despachos.
	med := createMedication(t, f.ledger, "Insulina", 10, 2, "40.00")
	p1, items1 := f.issue(t, "cons-1", pharmacy.IssueItem{MedicationID: med.ID, Quantity: 7})
	p2, items2 := f.issue(t, "cons-2", pharmacy.IssueItem{MedicationID: med.ID, Quantity: 7})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	run := func(i int, p pharmacy.Prescription, itemID string) {
		defer wg.Done()
		_, _, errs[i] = f.engine.Dispense(ctx, pharmacy.DispenseInput{
			PrescriptionID: p.ID,
			Items:          []pharmacy.DispenseItemInput{{PrescriptionItemID: itemID, Quantity: 7}},
		}, "pharm-1")
	}
	wg.Add(2)
	go run(0, p1, items1[0].ID)
	go run(1, p2, items2[0].ID)
	wg.Wait()

	var okCount, failCount int
	for _, err := range errs {
		if err == nil {
			okCount++
		} else if errors.Is(err, pharmacy.ErrInsufficientStock) {
			failCount++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 || failCount != 1 {
		t.Fatalf("ok=%d fail=%d, want exactly one success", okCount, failCount)
	}

	got, _ := f.ledger.GetMedication(ctx, med.ID)
	if got.CurrentStock != 3 {
		t.Fatalf("stock = %d, want 3", got.CurrentStock)
	}
}

func TestGetDispense(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	med := createMedication(t, f.ledger, "Meloxicam", 10, 2, "8.00")
	p, items := f.issue(t, "cons-1", pharmacy.IssueItem{MedicationID: med.ID, Quantity: 2})

	d, _, err := f.engine.Dispense(ctx, pharmacy.DispenseInput{
		PrescriptionID: p.ID,
		Items:          []pharmacy.DispenseItemInput{{PrescriptionItemID: items[0].ID, Quantity: 2}},
	}, "pharm-1")
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}

	got, gotItems, err := f.engine.GetDispense(ctx, d.ID)
	if err != nil {
		t.Fatalf("get dispense: %v", err)
	}
	if got.ID != d.ID || len(gotItems) != 1 {
		t.Fatalf("got %+v with %d items", got, len(gotItems))
	}

	if _, _, err := f.engine.GetDispense(ctx, "nope"); !errors.Is(err, pharmacy.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
