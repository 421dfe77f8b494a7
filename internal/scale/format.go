package scale

import (
	"fmt"
	"math"
)

// FormatWeight renders grams for the display: kilograms with two decimals
// above 1 kg in magnitude, otherwise whole grams rounded half to even.
func FormatWeight(grams float32) string {
	if math.Abs(float64(grams)) > 1000 {
		return fmt.Sprintf("Weight: %.2fkg", grams/1000)
	}
	return fmt.Sprintf("Weight %dg", int32(math.RoundToEven(float64(grams))))
}
