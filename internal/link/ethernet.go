package link

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"eftp/internal/config"
)

// MacAddress wraps a net.HardwareAddr as an Address.
type MacAddress struct {
	HW net.HardwareAddr
}

func (a MacAddress) String() string {
	return a.HW.String()
}

func (a MacAddress) Equal(other Address) bool {
	o, ok := other.(MacAddress)
	if !ok {
		return false
	}
	return a.HW.String() == o.HW.String()
}

// BroadcastMAC is the default destination original_source's CLI used when
// no specific peer MAC is known yet.
var BroadcastMAC = MacAddress{HW: net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}}

// EthernetLink sends and receives eftp frames as raw Ethernet payloads
// tagged with config.EtherType, via github.com/google/gopacket/pcap.
// Grounded on other_examples' gopacket/pcap usage and on original_source's
// use of Rust's pnet datalink channel for the same send/recv-one-frame
// shape.
type EthernetLink struct {
	handle *pcap.Handle
	self   MacAddress
	source *gopacket.PacketSource
}

// NewEthernetLink opens interfaceName in live, promiscuous mode sized for
// mtu-sized frames.
func NewEthernetLink(interfaceName string, mtu int) (*EthernetLink, error) {
	ifi, err := net.InterfaceByName(interfaceName)
	if err != nil {
		return nil, &config.ConfigError{Field: "interface", Message: err.Error(), Value: interfaceName}
	}

	handle, err := pcap.OpenLive(interfaceName, int32(mtu+64), true, pcap.BlockForever)
	if err != nil {
		return nil, &config.ConfigError{Field: "interface", Message: err.Error(), Value: interfaceName}
	}

	filter := fmt.Sprintf("ether proto 0x%04x", config.EtherType)
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, &config.ConfigError{Field: "bpf", Message: err.Error(), Value: filter}
	}

	source := gopacket.NewPacketSource(handle, handle.LinkType())

	return &EthernetLink{
		handle: handle,
		self:   MacAddress{HW: ifi.HardwareAddr},
		source: source,
	}, nil
}

func (l *EthernetLink) Send(dst Address, frame []byte) error {
	mac, ok := dst.(MacAddress)
	if !ok {
		return fmt.Errorf("link: EthernetLink.Send got non-MAC address %T", dst)
	}

	eth := &layers.Ethernet{
		SrcMAC:       l.self.HW,
		DstMAC:       mac.HW,
		EthernetType: layers.EthernetType(config.EtherType),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, gopacket.Payload(frame)); err != nil {
		return err
	}
	return l.handle.WritePacketData(buf.Bytes())
}

func (l *EthernetLink) Recv() ([]byte, Address, error) {
	for {
		packet, err := l.source.NextPacket()
		if err != nil {
			return nil, nil, err
		}

		ethLayer := packet.Layer(layers.LayerTypeEthernet)
		if ethLayer == nil {
			continue
		}
		eth, ok := ethLayer.(*layers.Ethernet)
		if !ok {
			continue
		}

		return eth.Payload, MacAddress{HW: eth.SrcMAC}, nil
	}
}

func (l *EthernetLink) LocalAddr() Address { return l.self }

func (l *EthernetLink) Close() error {
	l.handle.Close()
	return nil
}

// Interfaces lists the names of the capture devices pcap reports on this
// host. Neither the CLIs nor the monitor call it; they take the interface
// name as typed and check it when the link is opened.
func Interfaces() ([]string, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(devs))
	for _, d := range devs {
		names = append(names, d.Name)
	}
	return names, nil
}
