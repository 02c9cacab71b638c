// Package cost turns allocation totals into volumetric weight, chargeable
// weight and shipment cost, with advisory warnings for the carton itself.
package cost

import (
	"fmt"
	"math"

	"github.com/eugenenazirov/boxplan/internal/carton"
	"github.com/eugenenazirov/boxplan/internal/channel"
)

// Warning codes.
const (
	WarningBoxGirth   = "box_girth_exceeded"
	WarningOverweight = "overweight"
)

// Warning is an advisory message that never blocks a plan.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Summary aggregates the shipment figures for one carton.
// TotalWeight excludes tare, GrossWeight includes it.
type Summary struct {
	TotalQuantity    int     `json:"totalQuantity"`
	TotalWeight      float64 `json:"totalWeight"`
	GrossWeight      float64 `json:"grossWeight"`
	VolumetricWeight float64 `json:"volumetricWeight"`
	ChargeableWeight float64 `json:"chargeableWeight"`
	TotalCost        float64 `json:"totalCost"`
	CostPerItem      float64 `json:"costPerItem"`
	BoxGirth         float64 `json:"boxGirth"`
}

// Estimate prices the carton. Billing uses the greater of gross and
// volumetric weight.
func Estimate(rule channel.Rule, box carton.Box, totalWeight float64, totalQuantity int, pricePerKg float64) (Summary, []Warning) {
	gross := totalWeight + box.TareWeight
	volumetric := box.Volume() / rule.VolWeightDivisor
	chargeable := math.Max(gross, volumetric)
	total := chargeable * pricePerKg

	perItem := 0.0
	if totalQuantity > 0 {
		perItem = total / float64(totalQuantity)
	}

	summary := Summary{
		TotalQuantity:    totalQuantity,
		TotalWeight:      totalWeight,
		GrossWeight:      gross,
		VolumetricWeight: volumetric,
		ChargeableWeight: chargeable,
		TotalCost:        total,
		CostPerItem:      perItem,
		BoxGirth:         box.Girth(),
	}

	var warnings []Warning
	if summary.BoxGirth > rule.MaxCircumference {
		warnings = append(warnings, Warning{
			Code:    WarningBoxGirth,
			Message: fmt.Sprintf("box girth %.2f cm exceeds the %s limit of %g cm; oversize fees may apply", summary.BoxGirth, rule.Name, rule.MaxCircumference),
		})
	}
	if gross > rule.MaxWeight {
		warnings = append(warnings, Warning{
			Code:    WarningOverweight,
			Message: fmt.Sprintf("gross weight %.2f kg exceeds the %s limit of %g kg; overweight fees may apply", gross, rule.Name, rule.MaxWeight),
		})
	}

	return summary, warnings
}
