package questionnaire

// TerminalVariationID is the reserved next-variation hint meaning "no
// further question; proceed to review".
const TerminalVariationID = -1

func IsTerminal(variationID int) bool {
	return variationID == TerminalVariationID
}

// ResolveNextVariation picks the next variation id from the hints carried
// by the selected options. Duplicates collapse; an empty hint set falls
// back to the current variation. The terminal sentinel wins only when it
// is the sole distinct hint; otherwise the first non-terminal hint
// encountered is taken. Conflicting non-terminal hints indicate a data
// modeling gap upstream, so the choice is deterministic rather than
// meaningful.
func ResolveNextVariation(hints []int, fallback int) int {
	distinct := make([]int, 0, len(hints))
	seen := make(map[int]struct{}, len(hints))
	for _, h := range hints {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		distinct = append(distinct, h)
	}

	if len(distinct) == 0 {
		return fallback
	}
	if len(distinct) == 1 {
		return distinct[0]
	}

	for _, h := range distinct {
		if !IsTerminal(h) {
			return h
		}
	}
	return TerminalVariationID
}
