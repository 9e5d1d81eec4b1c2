package rules

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"food-compliance/internal/model"
)

// Products, brands and regulatory bodies drawn by the generator.
var (
	Products = []string{
		"Tomato", "Apple", "Banana", "Bittergourd", "Capsicum",
		"Cucumber", "Okra", "Oranges", "Potato", "Pineapple",
	}
	Brands           = brandNames(10)
	RegulatoryBodies = []string{"FDA", "EU", "WHO", "FSSAI", "USDA"}
)

func brandNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Brand_%d", i+1)
	}
	return out
}

// Generator produces labeled synthetic product records. Rows are labeled by
// Evaluate, so a row meant to be compliant may still be labeled not compliant
// when its random expiration date is in the past.
type Generator struct {
	Rand *rand.Rand
	Now  time.Time
}

// NewGenerator creates a generator seeded with seed.
func NewGenerator(seed uint64, now time.Time) *Generator {
	return &Generator{
		Rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		Now:  now,
	}
}

// Generate returns compliant low-risk rows followed by non-compliant high-risk
// rows.
func (g *Generator) Generate(compliant, nonCompliant int) ([]model.LabeledRecord, error) {
	if compliant < 0 || nonCompliant < 0 {
		return nil, fmt.Errorf("record counts must not be negative")
	}

	out := make([]model.LabeledRecord, 0, compliant+nonCompliant)
	for i := 0; i < compliant; i++ {
		rec, err := g.record(
			fmt.Sprintf("Fat: %dg, Sugar: %dg", g.between(0, 5), g.between(0, 5)),
			g.approvals(),
		)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	for i := 0; i < nonCompliant; i++ {
		notes := NoApproval
		if g.Rand.Float64() < 0.5 {
			notes = g.approvals()
		}
		rec, err := g.record(
			fmt.Sprintf("Fat: %dg, Sugar: %dg", g.between(6, 20), g.between(6, 15)),
			notes,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (g *Generator) record(nutrition, notes string) (model.LabeledRecord, error) {
	expires := g.Now.AddDate(0, 0, g.between(-365, 365)).Format(DateLayout)
	r := model.NewProductRecord(
		Products[g.Rand.IntN(len(Products))],
		Brands[g.Rand.IntN(len(Brands))],
		nutrition,
		expires,
		notes,
	)
	label, err := Label(r, g.Now)
	if err != nil {
		return model.LabeledRecord{}, err
	}
	return model.LabeledRecord{ProductRecord: r, Label: label}, nil
}

// between returns a uniform integer in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.Rand.IntN(hi-lo+1)
}

// approvals returns between one and all regulatory bodies in random order.
func (g *Generator) approvals() string {
	k := g.between(1, len(RegulatoryBodies))
	perm := g.Rand.Perm(len(RegulatoryBodies))
	picked := make([]string, k)
	for i := range picked {
		picked[i] = RegulatoryBodies[perm[i]]
	}
	return strings.Join(picked, ", ")
}
