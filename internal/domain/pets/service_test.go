package pets_test

import (
	"context"
	"errors"
	"testing"

	"vetclinic-api/internal/adapters/storage/memory"
	"vetclinic-api/internal/domain/pets"
)

func newPetsService() *pets.Service {
	return pets.NewService(memory.NewStore().Pets())
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func TestCreate_Validation(t *testing.T) {
	svc := newPetsService()
	ctx := context.Background()

	cases := []struct {
		name    string
		ownerID string
		in      pets.CreateInput
	}{
		{"empty owner", "", pets.CreateInput{Name: "Milo", Species: pets.SpeciesDog}},
		{"empty name", "owner-1", pets.CreateInput{Name: "  ", Species: pets.SpeciesDog}},
		{"empty species", "owner-1", pets.CreateInput{Name: "Milo"}},
		{"negative weight", "owner-1", pets.CreateInput{Name: "Milo", Species: pets.SpeciesDog, WeightKg: -1}},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.ownerID, tc.in); !errors.Is(err, pets.ErrInvalidInput) {
			t.Fatalf("%s: got %v, want ErrInvalidInput", tc.name, err)
		}
	}

	p, err := svc.Create(ctx, "owner-1", pets.CreateInput{Name: " Milo ", Species: pets.SpeciesDog})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Name != "Milo" || p.Estado != pets.EstadoEnCasa || !p.Active {
		t.Fatalf("pet = %+v", p)
	}
}

func TestUpdateProfile_PatchSemantics(t *testing.T) {
	svc := newPetsService()
	ctx := context.Background()

	p, _ := svc.Create(ctx, "owner-1", pets.CreateInput{
		Name:    "Milo",
		Species: pets.SpeciesDog,
		Breed:   "mixed",
	})

	// Solo se tocan los campos que vienen; el resto queda.
	got, err := svc.UpdateProfile(ctx, p.ID, pets.UpdateProfileInput{
		WeightKg: f64Ptr(12.4),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.WeightKg != 12.4 || got.Breed != "mixed" || got.Name != "Milo" {
		t.Fatalf("pet = %+v", got)
	}

	if _, err := svc.UpdateProfile(ctx, p.ID, pets.UpdateProfileInput{Name: strPtr("  ")}); !errors.Is(err, pets.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput on blank name", err)
	}
	if _, err := svc.UpdateProfile(ctx, "nope", pets.UpdateProfileInput{}); !errors.Is(err, pets.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDeactivate_Idempotent(t *testing.T) {
	svc := newPetsService()
	ctx := context.Background()

	p, _ := svc.Create(ctx, "owner-1", pets.CreateInput{Name: "Nina", Species: pets.SpeciesCat})

	got, err := svc.Deactivate(ctx, p.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if got.Active {
		t.Fatal("pet still active")
	}

	// Repetirlo no falla ni cambia nada.
	again, err := svc.Deactivate(ctx, p.ID)
	if err != nil {
		t.Fatalf("second deactivate: %v", err)
	}
	if again.Active {
		t.Fatal("pet reactivated")
	}
}

func TestListByOwner(t *testing.T) {
	svc := newPetsService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, "owner-1", pets.CreateInput{Name: "Milo", Species: pets.SpeciesDog}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, "owner-2", pets.CreateInput{Name: "Nina", Species: pets.SpeciesCat}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.ListByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Milo" {
		t.Fatalf("list = %+v", got)
	}
}
