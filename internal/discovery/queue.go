package discovery

// queue is the crawl frontier. Entries may repeat; has reports membership
// in O(1) so front and back pushes can be de-duplicated on demand.
type queue struct {
	items []string
	count map[string]int
}

func newQueue(seed ...string) *queue {
	q := &queue{count: make(map[string]int)}
	for _, u := range seed {
		q.push(u)
	}
	return q
}

func (q *queue) push(u string) {
	q.items = append(q.items, u)
	q.count[u]++
}

func (q *queue) pushUnique(u string) {
	if !q.has(u) {
		q.push(u)
	}
}

func (q *queue) pushFront(u string) {
	q.items = append([]string{u}, q.items...)
	q.count[u]++
}

func (q *queue) pop() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	u := q.items[0]
	q.items = q.items[1:]
	if q.count[u]--; q.count[u] == 0 {
		delete(q.count, u)
	}
	return u, true
}

func (q *queue) has(u string) bool { return q.count[u] > 0 }

func (q *queue) len() int { return len(q.items) }
