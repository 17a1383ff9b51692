package playback

// Queue 待播放 Cue 的有序缓冲区。
// 只由 Controller 持有和修改，本身不做并发保护。
type Queue struct{ items []Cue }

func NewQueue() *Queue { return &Queue{} }

// Push 追加到队尾
func (q *Queue) Push(c Cue) { q.items = append(q.items, c) }

// Pop 取出队首
func (q *Queue) Pop() (Cue, bool) {
	if len(q.items) == 0 {
		return Cue{}, false
	}
	head := q.items[0]
	q.items[0] = Cue{}
	q.items = q.items[1:]
	return head, true
}

func (q *Queue) Len() int { return len(q.items) }

// Reset 清空队列
func (q *Queue) Reset() { q.items = nil }

// Snapshot 返回队列内容的副本
func (q *Queue) Snapshot() []Cue {
	out := make([]Cue, len(q.items))
	copy(out, q.items)
	return out
}
