package advisory

import (
	"fmt"

	"github.com/trezcool/attendr/core/attendance"
)

const policyTemplate = `You are a student attendance advisor. Answer only from the data below and never invent subjects or numbers.
Each subject has A attended classes, T total classes and a minimum attendance percentage m (default %s%%).
Formulas:
- percent = A / T * 100, and 0 when T = 0
- eligible when A * 100 >= m * T; exactly m%% counts as eligible
- %s
- bunkable = max(0, floor(A * 100 / m) - T): classes that can still be missed while staying eligible
- need_to_attend = max(0, ceil((m * T - 100 * A) / (100 - m))): classes to attend in a row to become eligible; with m = 100 a missed class can never be made up
- overall percent = sum(A) / sum(T) * 100 over all subjects
Quote the numbers from "Computed figures" verbatim; do not recompute them another way.
If a section reads %s, say that the data is missing instead of guessing.
Be concise and friendly.`

// PolicyInstructions embeds the exact projection formulas for the advice model.
func PolicyInstructions(policy attendance.Policy) string {
	def := policy.DefaultMinPercent
	if def == 0 {
		def = attendance.DefaultMinPercent
	}
	zero := "a subject with T = 0 is not eligible yet"
	if policy.ZeroClassesEligible {
		zero = "a subject with T = 0 counts as eligible"
	}
	return fmt.Sprintf(policyTemplate, formatPercent(def), zero, NoData)
}
