package cache

// lruNode is a doubly-linked list node. value holds an *Entry[T] of the
// payload type that matches key.kind.
type lruNode struct {
	key   entryKey
	value any
	size  int64
	prev  *lruNode
	next  *lruNode
}

// lruList orders entries by recency and tracks their total size.
// Callers hold the manager lock.
type lruList struct {
	nodes   map[entryKey]*lruNode
	head    *lruNode // most recently used
	tail    *lruNode // least recently used
	curSize int64
}

func newLRUList() *lruList {
	return &lruList{nodes: make(map[entryKey]*lruNode)}
}

// peek looks a node up without touching recency
func (l *lruList) peek(key entryKey) (*lruNode, bool) {
	n, ok := l.nodes[key]
	return n, ok
}

func (l *lruList) put(key entryKey, value any, size int64) {
	if n, ok := l.nodes[key]; ok {
		l.curSize += size - n.size
		n.value = value
		n.size = size
		l.moveToFront(n)
		return
	}
	n := &lruNode{key: key, value: value, size: size}
	l.nodes[key] = n
	l.curSize += size
	l.addToFront(n)
}

func (l *lruList) remove(key entryKey) bool {
	n, ok := l.nodes[key]
	if !ok {
		return false
	}
	l.unlink(n)
	delete(l.nodes, key)
	l.curSize -= n.size
	return true
}

// evictUntilFits drops least recently used nodes until extra more bytes
// fit under maxSize. It returns the number of nodes evicted.
func (l *lruList) evictUntilFits(extra, maxSize int64) int {
	evicted := 0
	for l.tail != nil && l.curSize+extra > maxSize {
		l.remove(l.tail.key)
		evicted++
	}
	return evicted
}

// keys returns all keys matching fn
func (l *lruList) keys(fn func(entryKey) bool) []entryKey {
	var out []entryKey
	for k := range l.nodes {
		if fn(k) {
			out = append(out, k)
		}
	}
	return out
}

func (l *lruList) len() int {
	return len(l.nodes)
}

func (l *lruList) clear() {
	l.nodes = make(map[entryKey]*lruNode)
	l.head = nil
	l.tail = nil
	l.curSize = 0
}

func (l *lruList) addToFront(n *lruNode) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *lruList) unlink(n *lruNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}

func (l *lruList) moveToFront(n *lruNode) {
	if l.head == n {
		return
	}
	l.unlink(n)
	l.addToFront(n)
}
