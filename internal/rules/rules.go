// Package rules holds the deterministic compliance rules used to label
// synthetic training data.
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"food-compliance/internal/model"
)

// DateLayout is the expiration date format used in product data.
const DateLayout = "2006-01-02"

// Nutrient limits in grams per product.
const (
	MaxFat   = 5.0
	MaxSugar = 22.5
)

// NoApproval marks a product without regulatory approval.
const NoApproval = "None"

// Result explains a compliance decision.
type Result struct {
	Compliant bool     `json:"compliant"`
	Reasons   []string `json:"reasons,omitempty"`
}

// Evaluate applies the compliance rules to a record. A product is not
// compliant when it has expired relative to now, when its regulatory notes
// contain the no-approval marker, or when fat or sugar exceed their limits.
// Missing nutrients count as zero. An unparseable date or nutrition entry is
// an error.
func Evaluate(r model.ProductRecord, now time.Time) (Result, error) {
	nutrients, err := ParseNutrition(model.Value(r.NutritionalInfo))
	if err != nil {
		return Result{}, err
	}

	expires, err := time.Parse(DateLayout, strings.TrimSpace(model.Value(r.ExpirationDate)))
	if err != nil {
		return Result{}, fmt.Errorf("invalid expiration date %q: %w", model.Value(r.ExpirationDate), err)
	}

	var reasons []string
	if expires.Before(now) {
		reasons = append(reasons, "expired")
	}
	if strings.Contains(model.Value(r.RegulatoryNotes), NoApproval) {
		reasons = append(reasons, "no regulatory approval")
	}
	if fat := nutrients["Fat"]; fat > MaxFat {
		reasons = append(reasons, fmt.Sprintf("fat %gg exceeds %gg", fat, MaxFat))
	}
	if sugar := nutrients["Sugar"]; sugar > MaxSugar {
		reasons = append(reasons, fmt.Sprintf("sugar %gg exceeds %gg", sugar, MaxSugar))
	}

	return Result{Compliant: len(reasons) == 0, Reasons: reasons}, nil
}

// Label returns model.LabelCompliant or model.LabelNotCompliant for a record.
func Label(r model.ProductRecord, now time.Time) (int, error) {
	res, err := Evaluate(r, now)
	if err != nil {
		return 0, err
	}
	if res.Compliant {
		return model.LabelCompliant, nil
	}
	return model.LabelNotCompliant, nil
}

// ParseNutrition parses "Name: Ng" pairs separated by ", " into grams keyed by
// name. An empty string yields an empty map.
func ParseNutrition(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, item := range strings.Split(s, ", ") {
		name, amount, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("invalid nutrition entry %q", item)
		}
		amount = strings.TrimSpace(amount)
		if i := strings.IndexByte(amount, 'g'); i >= 0 {
			amount = amount[:i]
		}
		grams, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid nutrition amount in %q: %w", item, err)
		}
		out[strings.TrimSpace(name)] = grams
	}
	return out, nil
}
