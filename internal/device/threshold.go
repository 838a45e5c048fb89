package device

// HistoryCapacity is the number of past brightness readings the adaptive
// threshold averages over.
const HistoryCapacity = 150

// Estimator produces the adaptive brightness threshold: the rolling average
// of the last HistoryCapacity samples plus a configurable bias. The ring
// buffer is never cleared; it wraps forever.
type Estimator struct {
	history [HistoryCapacity]uint16
	count   uint64

	// Bias is added to the rolling average. Set via SET_THRESHOLD.
	Bias int16
}

// Update returns the threshold computed from the previous HistoryCapacity
// samples and then records sample in the oldest slot. The sum deliberately
// excludes the sample being written, and the division truncates; both match
// the reference numerics exactly.
func (e *Estimator) Update(sample uint16) uint16 {
	var sum uint32
	for _, v := range e.history {
		sum += uint32(v)
	}
	e.history[e.count%HistoryCapacity] = sample
	e.count++
	return uint16(int32(sum/HistoryCapacity) + int32(e.Bias))
}
