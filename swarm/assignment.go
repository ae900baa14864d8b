package swarm

// AssignmentTable maps a patrol point to the agent heading for it. Assigning a
// held point overwrites the previous holder without notice.
type AssignmentTable struct {
	byPoint map[*PatrolPoint]*Agent
}

func NewAssignmentTable() *AssignmentTable {
	return &AssignmentTable{byPoint: make(map[*PatrolPoint]*Agent)}
}

// Assign records a as heading to p and returns the displaced holder, if any.
func (t *AssignmentTable) Assign(p *PatrolPoint, a *Agent) *Agent {
	prev := t.byPoint[p]
	t.byPoint[p] = a
	if prev == a {
		return nil
	}
	return prev
}

func (t *AssignmentTable) Release(p *PatrolPoint) bool {
	if _, ok := t.byPoint[p]; !ok {
		return false
	}
	delete(t.byPoint, p)
	return true
}

// ReleaseAgent drops every entry held by a and returns how many were removed.
func (t *AssignmentTable) ReleaseAgent(a *Agent) int {
	n := 0
	for p, holder := range t.byPoint {
		if holder == a {
			delete(t.byPoint, p)
			n++
		}
	}
	return n
}

func (t *AssignmentTable) Holder(p *PatrolPoint) (*Agent, bool) {
	a, ok := t.byPoint[p]
	return a, ok
}

func (t *AssignmentTable) Len() int {
	return len(t.byPoint)
}

func (t *AssignmentTable) Snapshot() map[*PatrolPoint]*Agent {
	out := make(map[*PatrolPoint]*Agent, len(t.byPoint))
	for p, a := range t.byPoint {
		out[p] = a
	}
	return out
}
