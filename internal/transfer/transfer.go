// Package transfer implements the per-file sender and receiver state
// machines: SendConnection tracks outstanding fragments and drives
// timeout/fast retransmission; RecvConnection reassembles incoming
// fragments and reports completion.
package transfer

import (
	"sync"
	"time"

	"eftp/internal/config"
	"eftp/internal/offsetset"
	"eftp/internal/wire"
)

// fragment holds one outstanding piece of outgoing data. sentAt starts at
// the zero Time, which Timeouts treats as infinitely overdue — this is what
// routes a fragment's very first transmission through the same
// scheduler-driven timeout queue as every later retransmission, instead of
// the caller sending it inline.
type fragment struct {
	payload []byte
	isLast  bool
	sentAt  time.Time
	acked   bool
}

// SendConnection is the sender-side state for a single file transfer.
type SendConnection struct {
	mu sync.Mutex

	id     uint16
	rto    time.Duration
	adaptive bool

	fragments map[int]*fragment
	acked     *offsetset.Set
	length    int // total fragment count, -1 until Finish is called
}

// NewSendConnection creates a sender-side connection for file id.
func NewSendConnection(id uint16) *SendConnection {
	return &SendConnection{
		id:        id,
		rto:       config.DefaultRTO,
		fragments: make(map[int]*fragment),
		acked:     offsetset.New(),
		length:    -1,
	}
}

// EnableAdaptiveRTO turns on the optional EWMA RTO adjustment on each ACK.
func (c *SendConnection) EnableAdaptiveRTO(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adaptive = enabled
}

// Write enqueues one outgoing fragment at offset, marking it due for
// immediate first transmission by the scheduler's timeout queue (spec.md
// §4.3 enqueue: "initialize timers to a past instant so the first tick
// sends them"). Calling Write twice for the same offset with the same
// payload is a no-op that leaves the existing timer alone rather than
// creating a duplicate fragment.
func (c *SendConnection) Write(offset int, payload []byte, isLast bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.fragments[offset]; ok {
		f.payload = payload
		f.isLast = isLast
		return nil
	}
	c.fragments[offset] = &fragment{payload: payload, isLast: isLast}
	return nil
}

// Finish declares the total number of fragments once the file has been
// fully split and enqueued.
func (c *SendConnection) Finish(total int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.length = total
	return c.acked.SetLength(total)
}

// OnAck records an acknowledgement for offset. It returns the set of
// offsets below the acked one that are still unacknowledged — fast
// retransmit candidates — and whether the whole transfer is now complete.
func (c *SendConnection) OnAck(offset int) (fastRetransmit []int, complete bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.acked.SetBit(offset); err != nil {
		return nil, false, err
	}
	if f, ok := c.fragments[offset]; ok {
		if c.adaptive {
			rtt := time.Since(f.sentAt)
			c.rto = (7*c.rto + 3*rtt) / 10
		}
		f.acked = true
	}

	candidates := c.acked.UnsetBelow(offset)

	return candidates, c.acked.IsAllSet(), nil
}

// Timeouts returns every unacked offset whose fragment was last sent more
// than the current RTO ago, so the caller can retransmit them.
func (c *SendConnection) Timeouts(now time.Time) []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []int
	for offset, f := range c.fragments {
		if f.acked {
			continue
		}
		if now.Sub(f.sentAt) >= c.rto {
			out = append(out, offset)
		}
	}
	return out
}

// MarkSent refreshes a fragment's send timestamp, called right before the
// dispatcher actually emits it on the wire, and reports whether this is the
// fragment's first transmission (sentAt was still the zero Time) as opposed
// to a timeout or fast retransmission, so the caller can keep retransmission
// metrics from counting initial sends.
func (c *SendConnection) MarkSent(offset int) (first bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.fragments[offset]
	if !ok {
		return false
	}
	first = f.sentAt.IsZero()
	f.sentAt = time.Now()
	return first
}

// Fragment returns the payload and last-fragment flag for offset, or false
// if it has not been enqueued.
func (c *SendConnection) Fragment(offset int) (payload []byte, isLast bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, found := c.fragments[offset]
	if !found {
		return nil, false, false
	}
	return f.payload, f.isLast, true
}

// Complete reports whether every declared fragment has been acked.
func (c *SendConnection) Complete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acked.IsAllSet()
}

// ID returns the file id this connection tracks.
func (c *SendConnection) ID() uint16 { return c.id }

// RecvConnection is the receiver-side state for a single file transfer.
type RecvConnection struct {
	mu sync.Mutex

	id       uint16
	present  *offsetset.Set
	buffer   map[int][]byte
	done     bool
}

// NewRecvConnection creates a receiver-side connection for file id.
func NewRecvConnection(id uint16) *RecvConnection {
	return &RecvConnection{
		id:      id,
		present: offsetset.New(),
		buffer:  make(map[int][]byte),
	}
}

// OnData records an incoming Data or DataEnd fragment. DataEnd declares the
// total fragment count (offset+1). It returns whether the whole transfer is
// now complete. Calling OnData again for an offset already present is
// harmless — the dispatcher always ACKs regardless of whether this returns
// a state change.
func (c *RecvConnection) OnData(offset int, t wire.PacketType, payload []byte) (complete bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t == wire.DataEnd {
		if !c.present.HasLength() {
			if err := c.present.SetLength(offset + 1); err != nil {
				return false, err
			}
		}
	}

	if err := c.present.SetBit(offset); err != nil {
		return false, err
	}
	if _, exists := c.buffer[offset]; !exists {
		c.buffer[offset] = payload
	}

	c.done = c.present.IsAllSet()
	return c.done, nil
}

// Complete reports whether every fragment up to the declared length has
// arrived.
func (c *RecvConnection) Complete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Assemble concatenates every fragment in offset order into the
// reconstructed file. It must only be called once Complete reports true.
func (c *RecvConnection) Assemble() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	length, err := c.present.GetLength()
	if err != nil {
		return nil, err
	}

	var out []byte
	for i := 0; i < length; i++ {
		chunk, ok := c.buffer[i]
		if !ok {
			return nil, &offsetset.OffsetError{Offset: i, Reason: "missing fragment at assembly time"}
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// ID returns the file id this connection tracks.
func (c *RecvConnection) ID() uint16 { return c.id }
