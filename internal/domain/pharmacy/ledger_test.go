package pharmacy_test

import (
	"context"
	"errors"
	"testing"

	"vetclinic-api/internal/adapters/storage/memory"
	"vetclinic-api/internal/domain/pharmacy"

	"github.com/shopspring/decimal"
)

func newLedger(t *testing.T) (*pharmacy.Ledger, pharmacy.Repository) {
	t.Helper()
	store := memory.NewStore()
	repo := store.Pharmacy()
	return pharmacy.NewLedger(repo), repo
}

func createMedication(t *testing.T, ledger *pharmacy.Ledger, name string, stock, min int, price string) pharmacy.Medication {
	t.Helper()
	m, err := ledger.CreateMedication(context.Background(), pharmacy.CreateMedicationInput{
		Name:         name,
		Presentation: "tabletas 500mg",
		Unit:         "tableta",
		InitialStock: stock,
		MinStock:     min,
		SalePrice:    decimal.RequireFromString(price),
	}, "pharm-1")
	if err != nil {
		t.Fatalf("create medication: %v", err)
	}
	return m
}

func TestCreateMedication_InitialStockLeavesMovement(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	m := createMedication(t, ledger, "Amoxicilina", 150, 20, "3.50")
	if m.CurrentStock != 150 {
		t.Fatalf("stock = %d, want 150", m.CurrentStock)
	}

	movs, err := ledger.Movements(ctx, m.ID, pharmacy.MovementFilter{})
	if err != nil {
		t.Fatalf("movements: %v", err)
	}
	if len(movs) != 1 {
		t.Fatalf("movements = %d, want 1", len(movs))
	}
	mv := movs[0]
	if mv.Direction != pharmacy.MovementIn || mv.Quantity != 150 {
		t.Fatalf("movement = %+v", mv)
	}
	if mv.StockBefore != 0 || mv.StockAfter != 150 {
		t.Fatalf("audit chain broken: before=%d after=%d", mv.StockBefore, mv.StockAfter)
	}
}

func TestAdjustStock_AuditChain(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	m := createMedication(t, ledger, "Meloxicam", 30, 5, "8.00")

	adj, err := ledger.AdjustStock(ctx, m.ID, -12, "merma por vencimiento", "pharm-1")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if adj.PreviousStock != 30 || adj.NewStock != 18 {
		t.Fatalf("adjust = %+v", adj)
	}
	if adj.Movement.Direction != pharmacy.MovementOut || adj.Movement.Quantity != 12 {
		t.Fatalf("movement = %+v", adj.Movement)
	}

	got, _ := ledger.GetMedication(ctx, m.ID)
	if got.CurrentStock != 18 {
		t.Fatalf("stock = %d, want 18", got.CurrentStock)
	}

	// Cada movimiento debe encadenar con el anterior.
	movs, _ := ledger.Movements(ctx, m.ID, pharmacy.MovementFilter{})
	if len(movs) != 2 {
		t.Fatalf("movements = %d, want 2", len(movs))
	}
	if movs[0].StockBefore != movs[1].StockAfter {
		t.Fatalf("chain broken: %d -> %d", movs[1].StockAfter, movs[0].StockBefore)
	}
}

func TestAdjustStock_NeverGoesNegative(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	m := createMedication(t, ledger, "Tramadol", 10, 2, "15.00")

	_, err := ledger.AdjustStock(ctx, m.ID, -11, "error de conteo", "pharm-1")
	if !errors.Is(err, pharmacy.ErrInsufficientStock) {
		t.Fatalf("got %v, want ErrInsufficientStock", err)
	}

	// Nada quedó persistido: ni stock ni movimiento.
	got, _ := ledger.GetMedication(ctx, m.ID)
	if got.CurrentStock != 10 {
		t.Fatalf("stock = %d, want 10 (rolled back)", got.CurrentStock)
	}
	movs, _ := ledger.Movements(ctx, m.ID, pharmacy.MovementFilter{})
	if len(movs) != 1 {
		t.Fatalf("movements = %d, want 1 (only initial)", len(movs))
	}
}

func TestAdjustStock_ZeroDeltaRejected(t *testing.T) {
	ledger, _ := newLedger(t)

	m := createMedication(t, ledger, "Omeprazol", 5, 1, "2.00")
	_, err := ledger.AdjustStock(context.Background(), m.ID, 0, "nada", "pharm-1")
	if !errors.Is(err, pharmacy.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestCheckAvailability(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	m := createMedication(t, ledger, "Cefalexina", 8, 2, "4.25")

	if ok, _ := ledger.CheckAvailability(ctx, m.ID, 8); !ok {
		t.Fatal("expected available at exact stock")
	}
	if ok, _ := ledger.CheckAvailability(ctx, m.ID, 9); ok {
		t.Fatal("expected unavailable above stock")
	}
}

func TestListMedications_Filters(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	createMedication(t, ledger, "Amoxicilina", 100, 20, "3.50")
	low := createMedication(t, ledger, "Insulina", 3, 10, "40.00")

	got, err := ledger.ListMedications(ctx, pharmacy.MedicationFilter{LowStockOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != low.ID {
		t.Fatalf("low stock filter returned %d items", len(got))
	}

	got, _ = ledger.ListMedications(ctx, pharmacy.MedicationFilter{Name: "amoxi"})
	if len(got) != 1 || got[0].Name != "Amoxicilina" {
		t.Fatalf("name filter returned %d items", len(got))
	}
}
