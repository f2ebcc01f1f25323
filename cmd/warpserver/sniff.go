package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/cobra"

	"github.com/dcrodman/warpserver/internal/core/debug"
	"github.com/dcrodman/warpserver/internal/core/frame"
	"github.com/dcrodman/warpserver/internal/packets"
)

var PortFlag int

var sniffCmd = &cobra.Command{
	Use:   "sniff <capture.pcap>",
	Short: "Decodes the frames in a packet capture of server traffic",
	Args:  cobra.ExactArgs(1),
	RunE:  SniffCommand,
}

func SniffCommand(_ *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	s := &sniffer{Port: uint16(PortFlag), Writer: out}
	return s.readCapture(f)
}

// stream is one direction of one TCP connection.
type stream struct {
	buf   []byte
	split frame.Reassembler
}

type streamKey struct {
	network   gopacket.Flow
	transport gopacket.Flow
}

type sniffer struct {
	Port   uint16
	Writer io.Writer

	streams map[streamKey]*stream
}

func (s *sniffer) readCapture(r io.Reader) error {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return fmt.Errorf("error reading capture: %w", err)
	}
	s.streams = make(map[streamKey]*stream)

	source := gopacket.NewPacketSource(reader, reader.LinkType())
	for packet := range source.Packets() {
		s.handlePacket(packet)
	}
	return nil
}

func (s *sniffer) handlePacket(packet gopacket.Packet) {
	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil || packet.NetworkLayer() == nil {
		return
	}
	tcp := tcpLayer.(*layers.TCP)

	var fromClient bool
	switch {
	case uint16(tcp.DstPort) == s.Port:
		fromClient = true
	case uint16(tcp.SrcPort) == s.Port:
		fromClient = false
	default:
		return
	}

	key := streamKey{packet.NetworkLayer().NetworkFlow(), tcp.TransportFlow()}
	if tcp.SYN || tcp.RST {
		delete(s.streams, key)
	}
	if len(tcp.Payload) == 0 {
		return
	}
	st, ok := s.streams[key]
	if !ok {
		st = &stream{}
		s.streams[key] = st
	}
	st.buf = append(st.buf, tcp.Payload...)

	for {
		f, n, err := frame.Decode(st.buf)
		if errors.Is(err, frame.ErrIncomplete) {
			return
		}
		if err != nil {
			fmt.Fprintf(s.Writer, "%v: %v, dropping stream\n", key.transport, err)
			delete(s.streams, key)
			return
		}
		st.buf = st.buf[n:]
		s.emit(key, st, f, fromClient)
	}
}

func (s *sniffer) emit(key streamKey, st *stream, f frame.Frame, fromClient bool) {
	direction := "server->client"
	if fromClient {
		direction = "client->server"
	}

	if frame.IsSplitType(f.Type) {
		msg, done, err := st.split.Feed(f)
		if err != nil {
			fmt.Fprintf(s.Writer, "[%s %v] bad split message: %v\n", direction, key.transport, err)
			st.split = frame.Reassembler{}
			return
		}
		if !done {
			return
		}
		f = msg
	}

	fmt.Fprintf(s.Writer, "[%s %v] %v (%d bytes)\n%s\n",
		direction, key.transport, packets.Type(f.Type), len(f.Payload), debug.DescribeFrame(f, fromClient))
}
