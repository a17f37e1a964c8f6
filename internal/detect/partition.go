package detect

// Span is a half-open pixel index range [Start, End).
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int {
	return s.End - s.Start
}

// Partition splits total indices into workers contiguous spans. Boundaries fall
// on multiples of align (the row width) so a span never starts mid-row.
func Partition(total, workers, align int) []Span {
	if workers < 1 {
		workers = 1
	}
	if align < 1 {
		align = 1
	}
	units := (total + align - 1) / align
	spans := make([]Span, workers)
	for w := 0; w < workers; w++ {
		start := min(units*w/workers*align, total)
		end := min(units*(w+1)/workers*align, total)
		spans[w] = Span{Start: start, End: end}
	}
	return spans
}
