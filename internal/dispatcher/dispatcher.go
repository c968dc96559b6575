// Package dispatcher hosts the interface-wide receive loop, transmit
// scheduler, and connection map described by spec.md's interface
// dispatcher component. One Dispatcher owns exactly one link.Link and
// plays exactly one role (sender or receiver); nothing here depends on a
// process-wide global, so a single process can host many dispatchers.
package dispatcher

import (
	"fmt"
	"sync"
	"time"

	"eftp/internal/config"
	"eftp/internal/link"
	"eftp/internal/logger"
	"eftp/internal/metrics"
	"eftp/internal/transfer"
	"eftp/internal/wire"
)

// Tri is the (src, dst, file id) key identifying one connection. Addresses
// are stored as their canonical string form so Tri stays a plain
// comparable map key regardless of which link backend produced them.
type Tri struct {
	Src    string
	Dst    string
	FileID uint16
}

func (t Tri) String() string {
	return fmt.Sprintf("%s->%s:%d", t.Src, t.Dst, t.FileID)
}

// pendingOffset is one fast-retransmit candidate queued by the receive
// loop for the scheduler to drain.
type pendingOffset struct {
	tri    Tri
	offset int
}

type sendEntry struct {
	tri  Tri
	conn *transfer.SendConnection
	dst  link.Address
}

type recvEntry struct {
	tri    Tri
	conn   *transfer.RecvConnection
	src    link.Address
	doneCh chan struct{}
	once   sync.Once
}

// EventSink receives a notification for every dispatcher event worth
// surfacing outside the log file: a retransmission, a fast-retransmit, or a
// transfer completing. tri is the connection's Tri.String(); kind is one of
// "retransmit", "fast_retransmit", "send_complete", "recv_complete".
// emitEvent reads the sink under the dispatcher lock, then does a nil check
// and a channel-free direct call, not a pub/sub bus.
type EventSink interface {
	Event(tri string, kind string, detail string)
}

// Dispatcher multiplexes many concurrent file transfers over one Link.
type Dispatcher struct {
	lnk  link.Link
	role config.Role
	log  *logger.Logger

	mu                sync.Mutex
	sendConns         map[Tri]*sendEntry
	recvConns         map[Tri]*recvEntry
	recentlyCompleted map[Tri]time.Time
	fastQueue         map[string][]pendingOffset // keyed by peer address string
	sink              EventSink

	Metrics *metrics.DispatcherMetrics

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// SetEventSink attaches sink to receive future dispatcher events. Pass nil
// to detach. Safe to call concurrently with the receive loop and scheduler.
func (d *Dispatcher) SetEventSink(sink EventSink) {
	d.mu.Lock()
	d.sink = sink
	d.mu.Unlock()
}

func (d *Dispatcher) emitEvent(tri Tri, kind string, detail string) {
	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()
	if sink == nil {
		return
	}
	sink.Event(tri.String(), kind, detail)
}

// New creates a dispatcher for the given role, bound to lnk. The receive
// loop always starts; the transmit scheduler starts only for RoleSender,
// since a receiver has nothing to retransmit on its own initiative.
func New(lnk link.Link, role config.Role, log *logger.Logger) *Dispatcher {
	d := &Dispatcher{
		lnk:               lnk,
		role:              role,
		log:               log,
		sendConns:         make(map[Tri]*sendEntry),
		recvConns:         make(map[Tri]*recvEntry),
		recentlyCompleted: make(map[Tri]time.Time),
		fastQueue:         make(map[string][]pendingOffset),
		Metrics:           metrics.NewDispatcherMetrics(),
		closeCh:           make(chan struct{}),
	}

	d.wg.Add(1)
	go d.receiveLoop()

	if role == config.RoleSender {
		d.wg.Add(1)
		go d.schedulerLoop()
	}

	return d
}

// Close stops both loops and closes the underlying link.
func (d *Dispatcher) Close() error {
	close(d.closeCh)
	err := d.lnk.Close()
	d.wg.Wait()
	return err
}

func (d *Dispatcher) logf(level string, format string, args ...interface{}) {
	d.taggedLogf(nil, level, format, args...)
}

// taggedLogf derives a logger tagged with this connection's tri and the
// dispatcher's role via WithFields (or, if tri is nil, with the local link's
// own address as peer via WithField), so every line from a given connection
// or link carries tri=<src->dst:id> or peer=<addr> for grepping one
// transfer's lines out of a shared log file.
func (d *Dispatcher) taggedLogf(tri *Tri, level string, format string, args ...interface{}) {
	if d.log == nil {
		return
	}
	var log *logger.Logger
	if tri != nil {
		log = d.log.WithFields(map[string]string{"tri": tri.String(), "role": string(d.role)})
	} else {
		log = d.log.WithField("peer", d.lnk.LocalAddr().String())
	}
	switch level {
	case "debug":
		log.Debug(format, args...)
	case "warn":
		log.Warn(format, args...)
	case "error":
		log.Error(format, args...)
	default:
		log.Info(format, args...)
	}
}

// receiveLoop reads frames off the link forever, dispatching Data/DataEnd
// to the matching RecvConnection and Ack to the matching SendConnection.
// It is the only goroutine that ever calls lnk.Recv.
func (d *Dispatcher) receiveLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.closeCh:
			return
		default:
		}

		frame, srcAddr, err := d.lnk.Recv()
		if err != nil {
			select {
			case <-d.closeCh:
				return
			default:
			}
			d.logf("warn", "recv error: %v", err)
			d.Metrics.AddError()
			continue
		}

		pkt, err := wire.Decode(frame)
		if err != nil {
			d.logf("debug", "dropping malformed frame from %s: %v", srcAddr, err)
			d.Metrics.AddError()
			continue
		}

		switch pkt.Header.Type {
		case wire.Ack:
			d.handleAck(srcAddr, pkt)
		case wire.Data, wire.DataEnd:
			d.handleData(srcAddr, pkt)
		}
	}
}

func (d *Dispatcher) handleAck(srcAddr link.Address, pkt wire.Packet) {
	tri := Tri{Src: d.lnk.LocalAddr().String(), Dst: srcAddr.String(), FileID: pkt.Header.ID}

	d.mu.Lock()
	entry, ok := d.sendConns[tri]
	d.mu.Unlock()
	if !ok {
		return
	}

	candidates, complete, err := entry.conn.OnAck(int(pkt.Header.Offset))
	if err != nil {
		d.taggedLogf(&tri, "debug", "bad ack offset %d: %v", pkt.Header.Offset, err)
		return
	}

	if len(candidates) > 0 {
		d.mu.Lock()
		for _, off := range candidates {
			d.fastQueue[entry.dst.String()] = append(d.fastQueue[entry.dst.String()], pendingOffset{tri: tri, offset: off})
		}
		d.mu.Unlock()
	}

	if complete {
		d.mu.Lock()
		delete(d.sendConns, tri)
		d.mu.Unlock()
		d.Metrics.RemoveConnection()
		d.taggedLogf(&tri, "info", "send complete")
		d.emitEvent(tri, "send_complete", "")
	}
}

func (d *Dispatcher) handleData(srcAddr link.Address, pkt wire.Packet) {
	tri := Tri{Src: srcAddr.String(), Dst: d.lnk.LocalAddr().String(), FileID: pkt.Header.ID}

	d.mu.Lock()
	entry, ok := d.recvConns[tri]
	if !ok {
		if _, recent := d.recentlyCompleted[tri]; recent {
			d.mu.Unlock()
			d.sendAck(srcAddr, pkt.Header.ID, pkt.Header.Offset)
			return
		}
		entry = &recvEntry{
			tri:    tri,
			conn:   transfer.NewRecvConnection(pkt.Header.ID),
			src:    srcAddr,
			doneCh: make(chan struct{}),
		}
		d.recvConns[tri] = entry
		d.mu.Unlock()
		d.Metrics.AddConnection()
	} else {
		d.mu.Unlock()
	}

	complete, err := entry.conn.OnData(int(pkt.Header.Offset), pkt.Header.Type, pkt.Payload)
	if err != nil {
		d.taggedLogf(&tri, "debug", "bad data offset %d: %v", pkt.Header.Offset, err)
		return
	}
	d.Metrics.AddSegmentReceived()
	d.Metrics.AddBytesReceived(uint64(len(pkt.Payload)))

	// Always ACK, including duplicates: this is what stops a sender's
	// retransmissions once its view of our state is stale.
	d.sendAck(srcAddr, pkt.Header.ID, pkt.Header.Offset)

	if complete {
		entry.once.Do(func() {
			close(entry.doneCh)
			d.emitEvent(tri, "recv_complete", "")
		})
	}

	d.sweepRecentlyCompleted()
}

func (d *Dispatcher) sendAck(dst link.Address, id uint16, offset uint16) {
	frame := wire.Encode(wire.Packet{Header: wire.Header{Type: wire.Ack, ID: id, Offset: offset}})
	if err := d.lnk.Send(dst, frame); err != nil {
		d.logf("warn", "ack send failed: %v", err)
		d.Metrics.AddError()
	}
}

func (d *Dispatcher) sweepRecentlyCompleted() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	for tri, expiry := range d.recentlyCompleted {
		if now.After(expiry) {
			delete(d.recentlyCompleted, tri)
		}
	}
}

// schedulerLoop drains one fast-retransmit and one timeout candidate per
// peer per tick, matching spec.md's round-robin one-frame-per-peer-per-tick
// fairness rule. It releases the dispatcher lock between collecting this
// tick's candidates and actually sending them, so a slow Link.Send never
// blocks the receive loop's lock acquisition.
func (d *Dispatcher) schedulerLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.closeCh:
			return
		default:
		}

		sent := d.tick()
		if !sent {
			time.Sleep(config.SchedulerIdleSleep)
		}
	}
}

func (d *Dispatcher) tick() bool {
	type job struct {
		tri    Tri
		conn   *transfer.SendConnection
		dst    link.Address
		offset int
		fast   bool
	}

	d.mu.Lock()
	var jobs []job
	now := time.Now()

	for peer, queue := range d.fastQueue {
		if len(queue) == 0 {
			continue
		}
		next := queue[0]
		d.fastQueue[peer] = queue[1:]
		if entry, ok := d.sendConns[next.tri]; ok {
			jobs = append(jobs, job{tri: next.tri, conn: entry.conn, dst: entry.dst, offset: next.offset, fast: true})
		}
	}

	// A peer may get both a fast-retransmit job and a timeout job this
	// tick (spec.md §4.5 step 3: up to one frame from each queue); only
	// the timeout queue itself is capped at one candidate per peer.
	seenTimeoutPeer := make(map[string]bool)
	for tri, entry := range d.sendConns {
		peer := entry.dst.String()
		if seenTimeoutPeer[peer] {
			continue
		}
		timeouts := entry.conn.Timeouts(now)
		if len(timeouts) == 0 {
			continue
		}
		jobs = append(jobs, job{tri: tri, conn: entry.conn, dst: entry.dst, offset: timeouts[0], fast: false})
		seenTimeoutPeer[peer] = true
	}
	d.mu.Unlock()

	if len(jobs) == 0 {
		return false
	}

	for _, j := range jobs {
		payload, isLast, ok := j.conn.Fragment(j.offset)
		if !ok {
			continue
		}
		t := wire.Data
		if isLast {
			t = wire.DataEnd
		}
		frame := wire.Encode(wire.Packet{Header: wire.Header{Type: t, ID: j.tri.FileID, Offset: uint16(j.offset)}, Payload: payload})
		if err := d.lnk.Send(j.dst, frame); err != nil {
			d.taggedLogf(&j.tri, "warn", "retransmit send failed: %v", err)
			d.Metrics.AddError()
			continue
		}
		first := j.conn.MarkSent(j.offset)
		d.Metrics.AddSegmentSent()
		d.Metrics.AddBytesSent(uint64(wire.HeaderLen + len(payload)))
		if !first {
			if j.fast {
				d.Metrics.AddFastRetransmission()
				d.emitEvent(j.tri, "fast_retransmit", fmt.Sprintf("offset %d", j.offset))
			} else {
				d.Metrics.AddRetransmission()
				d.emitEvent(j.tri, "retransmit", fmt.Sprintf("offset %d", j.offset))
			}
		}
	}

	return true
}
