package link

import (
	"fmt"
	"net"

	"eftp/internal/config"
)

// UDPAddress wraps a *net.UDPAddr as an Address.
type UDPAddress struct {
	Addr *net.UDPAddr
}

func (a UDPAddress) String() string {
	if a.Addr == nil {
		return "<nil>"
	}
	return a.Addr.String()
}

func (a UDPAddress) Equal(other Address) bool {
	o, ok := other.(UDPAddress)
	if !ok || a.Addr == nil || o.Addr == nil {
		return false
	}
	return a.Addr.IP.Equal(o.Addr.IP) && a.Addr.Port == o.Addr.Port
}

// UDPLink carries eftp frames as individual UDP datagrams. Each Send call
// writes exactly one datagram; Recv returns exactly one datagram's payload.
// Grounded on the teacher's internal/serverudp.go / internal/clientudp.go
// socket handling (ListenUDP, SetReadBuffer/SetWriteBuffer sizing).
type UDPLink struct {
	conn *net.UDPConn
	self UDPAddress
}

// NewUDPLink opens a UDP socket bound to host:port. If port is 0, the OS
// assigns an ephemeral port (used by senders, which address their peer
// explicitly and need no well-known port of their own).
func NewUDPLink(host string, port int) (*UDPLink, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(host), Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, &config.ConfigError{Field: "udp", Message: err.Error(), Value: fmt.Sprintf("%s:%d", host, port)}
	}
	if err := conn.SetReadBuffer(config.DefaultReadBuffer); err != nil {
		_ = err // best-effort on platforms that don't support tuning this
	}
	if err := conn.SetWriteBuffer(config.DefaultWriteBuffer); err != nil {
		_ = err
	}
	return &UDPLink{conn: conn, self: UDPAddress{Addr: conn.LocalAddr().(*net.UDPAddr)}}, nil
}

func (l *UDPLink) Send(dst Address, frame []byte) error {
	addr, ok := dst.(UDPAddress)
	if !ok {
		return fmt.Errorf("link: UDPLink.Send got non-UDP address %T", dst)
	}
	_, err := l.conn.WriteToUDP(frame, addr.Addr)
	return err
}

func (l *UDPLink) Recv() ([]byte, Address, error) {
	buf := make([]byte, 65535)
	n, from, err := l.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}
	return buf[:n], UDPAddress{Addr: from}, nil
}

func (l *UDPLink) LocalAddr() Address { return l.self }

func (l *UDPLink) Close() error { return l.conn.Close() }
