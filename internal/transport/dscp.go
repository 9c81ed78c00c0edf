package transport

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// MaxDSCP is the largest six-bit DiffServ code point.
const MaxDSCP = 63

// ErrDSCPUnsupported is returned by SetDSCP for streams that are not plain
// TCP connections.
var ErrDSCPUnsupported = errors.New("dscp marking is only supported on tcp streams")

// SetDSCP marks every outgoing packet of a TCP stream with the DiffServ code
// point dscp, so routers that honour it can prioritise the transfer.
func SetDSCP(s Stream, dscp int) error {
	if dscp < 0 || dscp > MaxDSCP {
		return fmt.Errorf("dscp %d out of range 0-%d", dscp, MaxDSCP)
	}
	ts, ok := s.(tcpStream)
	if !ok {
		return ErrDSCPUnsupported
	}

	tos := dscp << 2
	if addr, ok := ts.Conn.LocalAddr().(*net.TCPAddr); ok && addr.IP.To4() == nil {
		return ipv6.NewConn(ts.Conn).SetTrafficClass(tos)
	}
	return ipv4.NewConn(ts.Conn).SetTOS(tos)
}

// DSCP reads back the code point currently set on a TCP stream.
func DSCP(s Stream) (int, error) {
	ts, ok := s.(tcpStream)
	if !ok {
		return 0, ErrDSCPUnsupported
	}

	var (
		tos int
		err error
	)
	if addr, ok := ts.Conn.LocalAddr().(*net.TCPAddr); ok && addr.IP.To4() == nil {
		tos, err = ipv6.NewConn(ts.Conn).TrafficClass()
	} else {
		tos, err = ipv4.NewConn(ts.Conn).TOS()
	}
	return tos >> 2, err
}
