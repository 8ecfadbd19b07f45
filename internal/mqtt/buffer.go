package mqtt

import "log"

// bufferCap bounds the offline buffer. At one telemetry message per
// poll cycle this is several hours of broker outage.
const bufferCap = 500

type bufferedMsg struct {
	topic   string
	qos     byte
	payload []byte
}

// ringBuffer holds messages while the broker is unreachable, dropping
// the oldest on overflow. Callers synchronize access.
type ringBuffer struct {
	msgs    []bufferedMsg
	dropped int
	logf    func(format string, v ...interface{})
}

func newRingBuffer() *ringBuffer {
	return &ringBuffer{logf: log.Printf}
}

func (r *ringBuffer) push(m bufferedMsg) {
	if len(r.msgs) >= bufferCap {
		r.msgs = r.msgs[1:]
		r.dropped++
		if r.dropped == 1 || r.dropped%100 == 0 {
			r.logf("offline buffer full, dropped %d oldest messages", r.dropped)
		}
	}
	r.msgs = append(r.msgs, m)
}

// drainAll empties the buffer and returns its contents in arrival order.
func (r *ringBuffer) drainAll() []bufferedMsg {
	out := r.msgs
	r.msgs = nil
	return out
}

func (r *ringBuffer) len() int {
	return len(r.msgs)
}
