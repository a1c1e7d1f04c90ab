package crawler

import "fmt"

// CrawlRange is an inclusive span of listing pages. Start >= End walks
// downward (the default, newest pages first); Start < End walks upward.
type CrawlRange struct {
	Start int
	End   int
}

// Descending reports whether the range is walked from high to low page numbers.
func (r CrawlRange) Descending() bool {
	return r.Start >= r.End
}

// Validate rejects ranges with a bound below 1.
func (r CrawlRange) Validate() error {
	if r.Start < 1 || r.End < 1 {
		return fmt.Errorf("%w: start=%d end=%d (pages are 1-based)", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// Len returns the number of pages in the range.
func (r CrawlRange) Len() int {
	if r.Descending() {
		return r.Start - r.End + 1
	}
	return r.End - r.Start + 1
}

// Pages returns the exact traversal sequence.
func (r CrawlRange) Pages() ([]int, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	out := make([]int, 0, r.Len())
	if r.Descending() {
		for p := r.Start; p >= r.End; p-- {
			out = append(out, p)
		}
		return out, nil
	}
	for p := r.Start; p <= r.End; p++ {
		out = append(out, p)
	}
	return out, nil
}

func (r CrawlRange) String() string {
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}
