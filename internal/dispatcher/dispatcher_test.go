package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eftp/internal/config"
	"eftp/internal/link"
	"eftp/internal/wire"
)

// memAddr is an in-memory Address used only by the memLink test double.
type memAddr string

func (a memAddr) String() string { return string(a) }
func (a memAddr) Equal(o link.Address) bool {
	other, ok := o.(memAddr)
	return ok && other == a
}

type envelope struct {
	frame []byte
	src   link.Address
}

// memLink is an in-process Link connecting exactly two dispatchers, so
// scheduler/fairness/loss-recovery scenarios run deterministically without
// a real NIC or socket.
type memLink struct {
	self  memAddr
	peer  *memLink
	inbox chan envelope
	done  chan struct{} // closed by Close so a blocked Recv returns

	mu      sync.Mutex
	dropped map[int]bool // offsets already dropped once, keyed by wire offset
}

func newMemLinkPair() (*memLink, *memLink) {
	a := &memLink{self: "A", inbox: make(chan envelope, 256), done: make(chan struct{}), dropped: make(map[int]bool)}
	b := &memLink{self: "B", inbox: make(chan envelope, 256), done: make(chan struct{}), dropped: make(map[int]bool)}
	a.peer = b
	b.peer = a
	return a, b
}

// dropFirst arranges for the first Data/DataEnd frame at the given offset
// sent FROM this link to be silently discarded; every later attempt (the
// retransmission) goes through.
func (m *memLink) dropFirst(offset int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[offset] = false
}

func (m *memLink) shouldDrop(offset int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	already, tracked := m.dropped[offset]
	if !tracked || already {
		return false
	}
	m.dropped[offset] = true
	return true
}

func (m *memLink) Send(dst link.Address, frame []byte) error {
	pkt, err := wire.Decode(frame)
	if err == nil && (pkt.Header.Type == wire.Data || pkt.Header.Type == wire.DataEnd) {
		if m.shouldDrop(int(pkt.Header.Offset)) {
			return nil
		}
	}
	m.peer.inbox <- envelope{frame: frame, src: m.self}
	return nil
}

func (m *memLink) Recv() ([]byte, link.Address, error) {
	select {
	case e := <-m.inbox:
		return e.frame, e.src, nil
	case <-m.done:
		return nil, nil, errors.New("memLink closed")
	}
}

func (m *memLink) LocalAddr() link.Address { return m.self }
func (m *memLink) Close() error            { close(m.done); return nil }

func TestDispatcherEndToEndNoLoss(t *testing.T) {
	senderLink, recvLink := newMemLinkPair()
	sender := New(senderLink, config.RoleSender, nil)
	receiver := New(recvLink, config.RoleReceiver, nil)
	defer sender.Close()
	defer receiver.Close()

	stream := receiver.Stream(memAddr("A"), 7)
	doneCh := make(chan []byte, 1)
	go func() {
		data, err := stream.Read(context.Background())
		require.NoError(t, err)
		doneCh <- data
	}()

	send, err := sender.OpenSend(memAddr("B"), 7)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	payload := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, send.Write(ctx, payload, 16))

	select {
	case got := <-doneCh:
		assert.Equal(t, payload, got)
	case <-time.After(2 * time.Second):
		t.Fatal("receiver never completed")
	}
}

func TestDispatcherFastRetransmitRecoversLoss(t *testing.T) {
	origRTO := config.DefaultRTO
	config.DefaultRTO = 500 * time.Millisecond // large enough that only fast-retransmit can recover in time
	defer func() { config.DefaultRTO = origRTO }()

	senderLink, recvLink := newMemLinkPair()
	sender := New(senderLink, config.RoleSender, nil)
	receiver := New(recvLink, config.RoleReceiver, nil)
	defer sender.Close()
	defer receiver.Close()

	senderLink.dropFirst(1) // drop the middle fragment once

	stream := receiver.Stream(memAddr("A"), 3)
	doneCh := make(chan []byte, 1)
	go func() {
		data, err := stream.Read(context.Background())
		require.NoError(t, err)
		doneCh <- data
	}()

	send, err := sender.OpenSend(memAddr("B"), 3)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	payload := []byte("abcdefghijklmnop") // 4 fragments of 4 bytes with mtu=12
	require.NoError(t, send.Write(ctx, payload, 12))

	select {
	case got := <-doneCh:
		assert.Equal(t, payload, got)
	case <-time.After(400 * time.Millisecond):
		t.Fatal("fast retransmit did not recover the dropped fragment in time")
	}
}

func TestDispatcherTimeoutRetransmitRecoversLoss(t *testing.T) {
	origRTO := config.DefaultRTO
	config.DefaultRTO = 20 * time.Millisecond
	defer func() { config.DefaultRTO = origRTO }()

	senderLink, recvLink := newMemLinkPair()
	sender := New(senderLink, config.RoleSender, nil)
	receiver := New(recvLink, config.RoleReceiver, nil)
	defer sender.Close()
	defer receiver.Close()

	senderLink.dropFirst(0) // drop the last (and only) fragment once, no later offset to trigger fast-retransmit

	stream := receiver.Stream(memAddr("A"), 9)
	doneCh := make(chan []byte, 1)
	go func() {
		data, err := stream.Read(context.Background())
		require.NoError(t, err)
		doneCh <- data
	}()

	send, err := sender.OpenSend(memAddr("B"), 9)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	payload := []byte("short")
	require.NoError(t, send.Write(ctx, payload, 64))

	select {
	case got := <-doneCh:
		assert.Equal(t, payload, got)
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("timeout retransmit did not recover the dropped fragment in time")
	}

	snap := sender.Metrics.GetSnapshot()
	assert.GreaterOrEqual(t, snap.TotalRetransmissions, uint64(1))
}

// spyLink wraps a link.Link and records the file id carried by every
// Data/DataEnd frame passed to Send, without altering delivery.
type spyLink struct {
	link.Link
	mu      sync.Mutex
	seenIDs []uint16
}

func (s *spyLink) Send(dst link.Address, frame []byte) error {
	pkt, err := wire.Decode(frame)
	if err == nil && (pkt.Header.Type == wire.Data || pkt.Header.Type == wire.DataEnd) {
		s.mu.Lock()
		s.seenIDs = append(s.seenIDs, pkt.Header.ID)
		s.mu.Unlock()
	}
	return s.Link.Send(dst, frame)
}

// TestDispatcherInterleavesConcurrentFilesToSamePeer covers the
// round-robin fairness the scheduler exists for: two files opened to the
// same peer close together must have their fragments interleaved by the
// scheduler (at most one frame per peer per tick), not sent as two
// back-to-back bursts. It asserts this by recording the file id of every
// Data/DataEnd frame actually put on the wire and checking the sequence
// switches ids more than once, instead of draining entirely for id 7 and
// then entirely for id 8.
func TestDispatcherInterleavesConcurrentFilesToSamePeer(t *testing.T) {
	senderLink, recvLink := newMemLinkPair()
	spy := &spyLink{Link: senderLink}
	sender := New(spy, config.RoleSender, nil)
	receiver := New(recvLink, config.RoleReceiver, nil)
	defer sender.Close()
	defer receiver.Close()

	streamA := receiver.Stream(memAddr("A"), 7)
	streamB := receiver.Stream(memAddr("A"), 8)
	doneA := make(chan []byte, 1)
	doneB := make(chan []byte, 1)
	go func() {
		data, err := streamA.Read(context.Background())
		require.NoError(t, err)
		doneA <- data
	}()
	go func() {
		data, err := streamB.Read(context.Background())
		require.NoError(t, err)
		doneB <- data
	}()

	sendA, err := sender.OpenSend(memAddr("B"), 7)
	require.NoError(t, err)
	sendB, err := sender.OpenSend(memAddr("B"), 8)
	require.NoError(t, err)

	payload := []byte("0123456789abcdef0123456789abcdef") // > 1 fragment at mtu=12
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); require.NoError(t, sendA.Write(ctx, payload, 12)) }()
	go func() { defer wg.Done(); require.NoError(t, sendB.Write(ctx, payload, 12)) }()
	wg.Wait()

	for i := 0; i < 2; i++ {
		select {
		case <-doneA:
		case <-doneB:
		case <-time.After(2 * time.Second):
			t.Fatal("both transfers did not complete")
		}
	}

	spy.mu.Lock()
	defer spy.mu.Unlock()
	switches := 0
	for i := 1; i < len(spy.seenIDs); i++ {
		if spy.seenIDs[i] != spy.seenIDs[i-1] {
			switches++
		}
	}
	assert.Greater(t, switches, 1, "scheduler should interleave frames between the two concurrent files, not burst one file then the other: %v", spy.seenIDs)
}

func TestRecvStreamRemoveOnReadAcksLateDuplicate(t *testing.T) {
	senderLink, recvLink := newMemLinkPair()
	receiver := New(recvLink, config.RoleReceiver, nil)
	defer receiver.Close()

	stream := receiver.Stream(memAddr("A"), 5)
	doneCh := make(chan []byte, 1)
	go func() {
		data, err := stream.Read(context.Background())
		require.NoError(t, err)
		doneCh <- data
	}()

	frame := wire.Encode(wire.Packet{Header: wire.Header{Type: wire.DataEnd, ID: 5, Offset: 0}, Payload: []byte("hi")})
	senderLink.peer.inbox <- envelope{frame: frame, src: memAddr("A")}

	select {
	case got := <-doneCh:
		assert.Equal(t, []byte("hi"), got)
	case <-time.After(time.Second):
		t.Fatal("receive never completed")
	}

	time.Sleep(20 * time.Millisecond) // let Read's remove-on-read run

	// A late duplicate of the same fragment should still be ACKed (we just
	// drain senderLink's inbox to see it) without error or panic, even
	// though the connection was already removed from the map.
	senderLink.peer.inbox <- envelope{frame: frame, src: memAddr("A")}
	select {
	case ack := <-senderLink.inbox:
		pkt, err := wire.Decode(ack.frame)
		require.NoError(t, err)
		assert.Equal(t, wire.Ack, pkt.Header.Type)
	case <-time.After(time.Second):
		t.Fatal("no ack for late duplicate")
	}
}
