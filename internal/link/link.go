// Package link abstracts the unreliable medium a dispatcher rides on,
// behind a single capability interface with two concrete backends: raw
// Ethernet frames (via gopacket/pcap) and UDP datagrams (via net.UDPConn).
package link

// Address identifies a peer on whichever medium a Link implements: a MAC
// address for EthernetLink, a host:port for UDPLink.
type Address interface {
	String() string
	Equal(Address) bool
}

// Link is the minimal send/receive capability a dispatcher needs. A single
// Link instance is safe for concurrent use by one receive goroutine and one
// scheduler goroutine, matching the dispatcher's concurrency model.
type Link interface {
	// Send transmits one already-encoded eftp frame to dst.
	Send(dst Address, frame []byte) error

	// Recv blocks until one frame arrives, returning its payload and the
	// peer address it came from.
	Recv() (frame []byte, src Address, err error)

	// LocalAddr returns this link's own address, used to fill the Src
	// field of outgoing packets.
	LocalAddr() Address

	// Close releases the underlying socket or pcap handle.
	Close() error
}
