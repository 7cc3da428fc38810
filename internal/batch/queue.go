package batch

// QueueInput holds the candidate list and the membership sets consulted when
// deciding which candidates still need work.
type QueueInput struct {
	// Candidates is the full URL list in first-seen file order.
	Candidates []string
	// Succeeded is the download success set.
	Succeeded map[string]struct{}
	// Failed is the failure set. Members are excluded outright: a failed URL
	// is not retried until the failure log is cleared by hand.
	Failed map[string]struct{}
	// Validated is the upstream validator's success set. When non-nil, a URL
	// counts as already handled only if it is in BOTH Succeeded and
	// Validated; a nil map disables the cross-log check.
	Validated map[string]struct{}
}

// BuildQueue returns the ordered subsequence of candidates that are neither
// already handled nor already failed. The result is a snapshot: it is
// computed once and never regenerated mid-run.
func BuildQueue(in QueueInput) []string {
	queue := make([]string, 0, len(in.Candidates))
	for _, url := range in.Candidates {
		if _, failed := in.Failed[url]; failed {
			continue
		}
		if _, done := in.Succeeded[url]; done {
			if in.Validated == nil {
				continue
			}
			if _, validated := in.Validated[url]; validated {
				continue
			}
		}
		queue = append(queue, url)
	}
	return queue
}
