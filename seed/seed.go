/*
Package seed loads reference data.

PURPOSE:
  CHUs and commodities are reference data the rest of the system only
  reads. Load upserts a Dataset by name so it can run on every start
  without creating duplicates.

DATASETS:
  Default: A small set of units and the commonly requested commodities.
           Used on server start and by `admin seed`.

USAGE:
  if err := seed.Load(ctx, store, seed.Default()); err != nil { ... }

SEE ALSO:
  - store/sqlite/sqlite.go: SaveCHU, SaveCommodity
  - cmd/admin/main.go: seed subcommand
*/
package seed

import (
	"context"
	"fmt"

	"github.com/chwlink/commodity-engine/store/sqlite"
)

// Store is the part of the store that loading needs.
type Store interface {
	SaveCHU(ctx context.Context, chu sqlite.CHU) (int64, error)
	SaveCommodity(ctx context.Context, name string) (int64, error)
}

// Dataset is a set of reference records.
type Dataset struct {
	CHUs        []sqlite.CHU
	Commodities []string
}

// Result holds the IDs assigned to a loaded dataset, keyed by name.
type Result struct {
	CHUs        map[string]int64
	Commodities map[string]int64
}

// Default returns the built-in dataset.
func Default() Dataset {
	return Dataset{
		CHUs: []sqlite.CHU{
			{Name: "Kibera CHU", County: "Nairobi"},
			{Name: "Mathare CHU", County: "Nairobi"},
			{Name: "Kisumu Central CHU", County: "Kisumu"},
			{Name: "Nyali CHU", County: "Mombasa"},
		},
		Commodities: []string{
			"Paracetamol",
			"Amoxicillin",
			"ORS Sachets",
			"Zinc Tablets",
			"Malaria RDT Kits",
			"Artemether-Lumefantrine",
			"Male Condoms",
			"Gloves",
		},
	}
}

// Load upserts every record in ds.
func Load(ctx context.Context, store Store, ds Dataset) (Result, error) {
	res := Result{
		CHUs:        make(map[string]int64, len(ds.CHUs)),
		Commodities: make(map[string]int64, len(ds.Commodities)),
	}

	for _, chu := range ds.CHUs {
		id, err := store.SaveCHU(ctx, chu)
		if err != nil {
			return Result{}, fmt.Errorf("failed to seed chu %q: %w", chu.Name, err)
		}
		res.CHUs[chu.Name] = id
	}

	for _, name := range ds.Commodities {
		id, err := store.SaveCommodity(ctx, name)
		if err != nil {
			return Result{}, fmt.Errorf("failed to seed commodity %q: %w", name, err)
		}
		res.Commodities[name] = id
	}

	return res, nil
}
