package samples

// Item identifies one sample stage queued for execution or dry-run
// validation.
type Item struct {
	ID    string         `json:"id"`
	Stage StageName      `json:"stage"`
	Data  map[string]any `json:"data,omitempty"`
}

// DryRunQueue is the ordered list of sample stages pending a dry run.
type DryRunQueue struct {
	Stages []Item `json:"stages"`
}

// Clear empties the queue.
func (q *DryRunQueue) Clear() {
	q.Stages = nil
}

// Contains reports whether an item for the same sample and stage is queued.
func (q *DryRunQueue) Contains(item Item) bool {
	return q.index(item) >= 0
}

// AddItem appends an item unless it is already queued.
func (q *DryRunQueue) AddItem(item Item) {
	if q.Contains(item) {
		return
	}
	q.Stages = append(q.Stages, item)
}

// ClearItem removes an item if present.
func (q *DryRunQueue) ClearItem(item Item) {
	i := q.index(item)
	if i < 0 {
		return
	}
	q.Stages = append(q.Stages[:i], q.Stages[i+1:]...)
}

// MoveItemUp moves an item one position toward the front.
func (q *DryRunQueue) MoveItemUp(item Item) {
	i := q.index(item)
	if i <= 0 {
		return
	}
	q.Stages[i-1], q.Stages[i] = q.Stages[i], q.Stages[i-1]
}

// MoveItemDown moves an item one position toward the back.
func (q *DryRunQueue) MoveItemDown(item Item) {
	i := q.index(item)
	if i < 0 || i >= len(q.Stages)-1 {
		return
	}
	q.Stages[i], q.Stages[i+1] = q.Stages[i+1], q.Stages[i]
}

func (q *DryRunQueue) index(item Item) int {
	for i, existing := range q.Stages {
		if existing.ID == item.ID && existing.Stage == item.Stage {
			return i
		}
	}
	return -1
}
