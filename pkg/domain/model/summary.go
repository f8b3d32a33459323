package model

// Summary is the fold of all job outcomes of one run
type Summary struct {
	Total   uint64 `json:"total"`
	Success uint64 `json:"success"`
	Skipped uint64 `json:"skipped"`
	Failed  uint64 `json:"failed"`
}

// Add folds one terminal outcome into s. Pending outcomes are ignored.
func (s Summary) Add(o Outcome) Summary {
	switch o {
	case OutcomeSuccess:
		s.Success++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	default:
		return s
	}
	s.Total++
	return s
}

// Merge combines two partial summaries. It is commutative and associative.
func (s Summary) Merge(other Summary) Summary {
	return Summary{
		Total:   s.Total + other.Total,
		Success: s.Success + other.Success,
		Skipped: s.Skipped + other.Skipped,
		Failed:  s.Failed + other.Failed,
	}
}

// Balanced reports whether success + skipped + failed == total
func (s Summary) Balanced() bool {
	return s.Success+s.Skipped+s.Failed == s.Total
}
