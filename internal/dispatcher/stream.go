package dispatcher

import (
	"context"
	"errors"
	"time"

	"eftp/internal/config"
	"eftp/internal/link"
	"eftp/internal/transfer"
	"eftp/internal/wire"
)

// ErrStreamTerminated is returned when a stream's dispatcher is closed
// while a Write or Read is still outstanding, and by Write when its
// connection is no longer registered with the dispatcher.
var ErrStreamTerminated = errors.New("dispatcher: stream terminated")

// SendStream is a handle for sending one file to one peer. It carries only
// a Tri and a pointer back to the Dispatcher, never a pointer to the
// connection itself, so completed connections can be freed without leaving
// a dangling reference behind in application code.
type SendStream struct {
	d   *Dispatcher
	tri Tri
}

// OpenSend registers a new outgoing file transfer to dst under fileID and
// returns a handle to drive it. Only one send per (dst, fileID) pair may be
// open at a time.
func (d *Dispatcher) OpenSend(dst link.Address, fileID uint16) (*SendStream, error) {
	tri := Tri{Src: d.lnk.LocalAddr().String(), Dst: dst.String(), FileID: fileID}

	d.mu.Lock()
	if _, exists := d.sendConns[tri]; exists {
		d.mu.Unlock()
		return nil, &config.ConfigError{Field: "fileID", Message: "send already open for this peer/id", Value: fileID}
	}
	d.sendConns[tri] = &sendEntry{
		tri:  tri,
		conn: transfer.NewSendConnection(fileID),
		dst:  dst,
	}
	d.mu.Unlock()
	d.Metrics.AddConnection()

	return &SendStream{d: d, tri: tri}, nil
}

// Write splits data into mtu-sized fragments, enqueues them with timers due
// immediately, and blocks until every fragment has been acknowledged (or ctx
// is done). Both the first transmission of each fragment and every later
// retransmission are emitted by the dispatcher's scheduler loop, one
// fast-retransmit and one timeout candidate per peer per tick — this is
// what interleaves fragments across multiple files queued to the same
// peer instead of one file bursting its whole payload before the next
// file's first fragment goes out. Which file and which offset supplies a
// peer's timeout candidate follows Go map iteration order, so the order of
// the interleaving is not defined.
func (s *SendStream) Write(ctx context.Context, data []byte, mtu int) error {
	s.d.mu.Lock()
	entry, ok := s.d.sendConns[s.tri]
	s.d.mu.Unlock()
	if !ok {
		return ErrStreamTerminated
	}

	chunkSize := mtu - wire.HeaderLen
	if chunkSize <= 0 {
		return &config.ConfigError{Field: "mtu", Message: "too small to carry a payload", Value: mtu}
	}

	var chunks [][]byte
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}
	if len(chunks) == 0 {
		chunks = [][]byte{{}}
	}

	for i, chunk := range chunks {
		isLast := i == len(chunks)-1
		if err := entry.conn.Write(i, chunk, isLast); err != nil {
			return err
		}
	}
	if err := entry.conn.Finish(len(chunks)); err != nil {
		return err
	}

	return s.waitComplete(ctx, entry.conn)
}

func (s *SendStream) waitComplete(ctx context.Context, conn *transfer.SendConnection) error {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for {
		if conn.Complete() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.d.closeCh:
			return ErrStreamTerminated
		case <-ticker.C:
		}
	}
}

// RecvStream is a handle for receiving one file from one known peer.
type RecvStream struct {
	d   *Dispatcher
	tri Tri
}

// Stream returns a handle for the transfer identified by (peer, fileID).
// The underlying RecvConnection may not exist yet; it is created lazily by
// the receive loop the first time a Data frame for this id arrives.
func (d *Dispatcher) Stream(peer link.Address, fileID uint16) *RecvStream {
	tri := Tri{Src: peer.String(), Dst: d.lnk.LocalAddr().String(), FileID: fileID}
	return &RecvStream{d: d, tri: tri}
}

// Read blocks until the transfer completes, then removes the connection
// from the dispatcher's map ("remove on read") and returns the
// reassembled file. After Read returns, late duplicate Data frames for
// this id are still ACKed (via the recently-completed set) but no longer
// resurrect connection state.
func (s *RecvStream) Read(ctx context.Context) ([]byte, error) {
	for {
		s.d.mu.Lock()
		entry, ok := s.d.recvConns[s.tri]
		s.d.mu.Unlock()

		if ok {
			select {
			case <-entry.doneCh:
				return s.consume(entry)
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-s.d.closeCh:
				return nil, ErrStreamTerminated
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.d.closeCh:
			return nil, ErrStreamTerminated
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (s *RecvStream) consume(entry *recvEntry) ([]byte, error) {
	s.d.mu.Lock()
	if _, ok := s.d.recvConns[s.tri]; ok {
		delete(s.d.recvConns, s.tri)
		s.d.recentlyCompleted[s.tri] = time.Now().Add(config.RecentlyCompletedTTL)
	}
	s.d.mu.Unlock()

	data, err := entry.conn.Assemble()
	if err != nil {
		return nil, err
	}
	s.d.Metrics.RemoveConnection()
	return data, nil
}
