package emission

// State tracks a run through its lifecycle. Failed is terminal and only
// reachable before matching: once records are matched, individual failures
// are accumulated per record and the run still completes.
type State int

const (
	StateCreated State = iota
	StateCSVLoaded
	StateMatched
	StateDispatched
	StateAggregated
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateCSVLoaded:
		return "csv_loaded"
	case StateMatched:
		return "matched"
	case StateDispatched:
		return "dispatched"
	case StateAggregated:
		return "aggregated"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
