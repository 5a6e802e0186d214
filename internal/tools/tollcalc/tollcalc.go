// Package tollcalc implements the calculate_toll tool.
//
// The toll is distance times rate times a per-vehicle multiplier, rounded to
// two decimal places. Unknown vehicle types get a multiplier of 1.0 rather
// than an error, and the rate defaults to 0.25 per mile when omitted.
package tollcalc

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/heravelli/tollgate/internal/tools"
)

// DefaultRate is the per-mile toll rate applied when the caller omits one.
const DefaultRate = 0.25

// multipliers scales the toll by vehicle type. Lookup is case-insensitive.
var multipliers = map[string]float64{
	"car":        1.0,
	"truck":      1.5,
	"motorcycle": 0.8,
}

// tollArgs is the argument object for calculate_toll. TollRate is a pointer
// so an explicit zero rate is distinguishable from an omitted one.
type tollArgs struct {
	VehicleType string   `json:"vehicle_type"`
	Distance    float64  `json:"distance"`
	TollRate    *float64 `json:"toll_rate"`
}

// Tool returns the calculate_toll tool.
func Tool() tools.Tool {
	return tools.Tool{
		Definition: tools.Definition{
			Name:        "calculate_toll",
			Description: "Calculates the toll for a vehicle based on type, distance, and toll rate.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"vehicle_type": {
						Type:        "string",
						Description: "Vehicle type, e.g. car, truck or motorcycle.",
					},
					"distance": {
						Type:        "number",
						Description: "Distance travelled in miles.",
					},
					"toll_rate": {
						Type:        "number",
						Description: "Toll rate per mile. Defaults to 0.25.",
					},
				},
				Required: []string{"vehicle_type", "distance"},
			},
		},
		Handler: handle,
	}
}

func handle(_ context.Context, args json.RawMessage) (string, error) {
	var a tollArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("tollcalc: decode args: %w", err)
	}

	toll := Calculate(a.VehicleType, a.Distance, a.TollRate)
	return strconv.FormatFloat(toll, 'f', -1, 64), nil
}

// Calculate computes the rounded toll. rate may be nil, meaning [DefaultRate].
func Calculate(vehicleType string, distance float64, rate *float64) float64 {
	r := DefaultRate
	if rate != nil {
		r = *rate
	}
	mult, ok := multipliers[strings.ToLower(vehicleType)]
	if !ok {
		mult = 1.0
	}
	return math.Round(distance*r*mult*100) / 100
}
