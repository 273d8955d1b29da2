// SPDX-License-Identifier: MPL-2.0

package graph

type (
	// ProgressFunc receives the number of processed modules and the number
	// of modules discovered so far. The total grows during a pass.
	ProgressFunc func(processed, total int)

	ratio struct {
		fn               ProgressFunc
		processed, total int
	}

	multiProgress []Progress
)

// ProgressRatio adapts fn to the Progress interface.
func ProgressRatio(fn ProgressFunc) Progress {
	return &ratio{fn: fn}
}

func (r *ratio) DependencyDiscovered() {
	r.total++
	r.fn(r.processed, r.total)
}

func (r *ratio) DependencyProcessed() {
	r.processed++
	r.fn(r.processed, r.total)
}

// MultiProgress fans progress out to every non-nil p.
func MultiProgress(p ...Progress) Progress {
	var m multiProgress
	for _, x := range p {
		if x != nil {
			m = append(m, x)
		}
	}
	return m
}

func (m multiProgress) DependencyDiscovered() {
	for _, p := range m {
		p.DependencyDiscovered()
	}
}

func (m multiProgress) DependencyProcessed() {
	for _, p := range m {
		p.DependencyProcessed()
	}
}
