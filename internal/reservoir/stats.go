package reservoir

import "esnkit/internal/mathx"

// Stats summarizes the collected neuron statistics of a reservoir.
type Stats struct {
	Name                  string              `json:"name"`
	Size                  int                 `json:"size"`
	Topology              Topology            `json:"topology"`
	Connections           int                 `json:"connections"`
	NeuronsAvgStates      mathx.StatSnapshot  `json:"neurons_avg_states"`
	NeuronsMaxStates      mathx.StatSnapshot  `json:"neurons_max_states"`
	NeuronsMinStates      mathx.StatSnapshot  `json:"neurons_min_states"`
	NeuronsStateSpans     mathx.StatSnapshot  `json:"neurons_state_spans"`
	NeuronsRetainmentRate mathx.StatSnapshot  `json:"neurons_retainment_rate"`
	Context               *mathx.StatSnapshot `json:"context,omitempty"`
}

func (r *Reservoir) Stats() Stats {
	var avg, max, min, span, retainment mathx.BasicStat
	for _, n := range r.neurons {
		retainment.Add(n.retainmentRate)
		if n.stats.Empty() {
			continue
		}
		avg.Add(n.stats.Mean())
		max.Add(n.stats.Max())
		min.Add(n.stats.Min())
		span.Add(n.stats.Span())
	}
	connections := 0
	for _, edges := range r.adjacency.incoming {
		connections += len(edges)
	}
	out := Stats{
		Name:                  r.settings.Name,
		Size:                  len(r.neurons),
		Topology:              r.settings.Topology,
		Connections:           connections,
		NeuronsAvgStates:      avg.Snapshot(),
		NeuronsMaxStates:      max.Snapshot(),
		NeuronsMinStates:      min.Snapshot(),
		NeuronsStateSpans:     span.Snapshot(),
		NeuronsRetainmentRate: retainment.Snapshot(),
	}
	if r.context != nil {
		snapshot := r.context.Stats()
		out.Context = &snapshot
	}
	return out
}
