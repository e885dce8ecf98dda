package irc

// queue is an unbounded FIFO buffer of inbound messages sitting between the
// connection reader and the dispatch loop. The reader must never block on a
// slow handler, otherwise server pings go unanswered and the connection drops.
//
// Messages are appended to in and drained from out in arrival order.
// Closing in drains the buffer and then closes out.
type queue struct {
	in  chan *Message
	out chan *Message
}

func newQueue() *queue {
	q := &queue{
		in:  make(chan *Message),
		out: make(chan *Message),
	}
	go q.pump()
	return q
}

func (q *queue) pump() {
	defer close(q.out)
	var buf []*Message
	for {
		var out chan *Message
		var next *Message
		if len(buf) > 0 {
			out = q.out
			next = buf[0]
		}
		select {
		case m, ok := <-q.in:
			if !ok {
				for _, m := range buf {
					q.out <- m
				}
				return
			}
			buf = append(buf, m)
		case out <- next:
			buf = buf[1:]
		}
	}
}
