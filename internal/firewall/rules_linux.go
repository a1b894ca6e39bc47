//go:build linux
// +build linux

package firewall

import (
	"strconv"
	"strings"

	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
)

const (
	// nfproto values (linux/netfilter.h)
	protoIPv4 = 0x2
	protoIPv6 = 0xa

	// L4 protocol numbers
	protoICMP   = 1
	protoTCP    = 6
	protoUDP    = 17
	protoICMPv6 = 58

	// IP header geometry
	ipv4HeaderLen = 4
	ipv6HeaderLen = 16
	ipv4SrcOffset = 12
	ipv6SrcOffset = 8

	// TCP/UDP destination port
	dportOffset = 2
	dportLen    = 2
)

// matchFamily matches the packet's address family. Needed in an inet
// table so IPv4 payload offsets never apply to IPv6 packets.
func matchFamily(ipv6 bool) []expr.Any {
	proto := byte(protoIPv4)
	if ipv6 {
		proto = protoIPv6
	}
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyNFPROTO, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: []byte{proto}},
	}
}

// matchSaddrSet matches the source address against a named set.
func matchSaddrSet(setName string, ipv6 bool) []expr.Any {
	offset := uint32(ipv4SrcOffset)
	length := uint32(ipv4HeaderLen)
	if ipv6 {
		offset = ipv6SrcOffset
		length = ipv6HeaderLen
	}

	exprs := matchFamily(ipv6)
	return append(exprs,
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseNetworkHeader,
			Offset:       offset,
			Len:          length,
		},
		&expr.Lookup{SourceRegister: 1, SetName: setName},
	)
}

// matchL4Proto matches the transport protocol.
func matchL4Proto(proto byte) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyL4PROTO, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: []byte{proto}},
	}
}

// matchDportSet matches the TCP/UDP destination port against a named
// set. Callers must match the L4 protocol first.
func matchDportSet(setName string) []expr.Any {
	return []expr.Any{
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseTransportHeader,
			Offset:       dportOffset,
			Len:          dportLen,
		},
		&expr.Lookup{SourceRegister: 1, SetName: setName},
	}
}

// matchCtState matches any of the given conntrack state bits.
func matchCtState(mask uint32) []expr.Any {
	return []expr.Any{
		&expr.Ct{Register: 1, Key: expr.CtKeySTATE},
		&expr.Bitwise{
			SourceRegister: 1,
			DestRegister:   1,
			Len:            4,
			Mask:           binaryutil.NativeEndian.PutUint32(mask),
			Xor:            binaryutil.NativeEndian.PutUint32(0),
		},
		&expr.Cmp{Op: expr.CmpOpNeq, Register: 1, Data: binaryutil.NativeEndian.PutUint32(0)},
	}
}

// matchInputInterface matches the input interface name.
func matchInputInterface(name string) []expr.Any {
	// Pad to IFNAMSIZ
	data := make([]byte, 16)
	copy(data, name)
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyIIFNAME, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: data},
	}
}

// limitExprs builds a packet rate limit from "N/second" style strings.
// Invalid strings yield no expressions, so the rule matches unlimited;
// Validate rejects them before a ruleset gets this far.
func limitExprs(limit string) []expr.Any {
	parts := strings.Split(limit, "/")
	if len(parts) != 2 {
		return nil
	}

	rate, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil || rate == 0 {
		return nil
	}

	var unit expr.LimitTime
	switch strings.ToLower(parts[1]) {
	case "second", "sec", "s":
		unit = expr.LimitTimeSecond
	case "minute", "min", "m":
		unit = expr.LimitTimeMinute
	case "hour", "h":
		unit = expr.LimitTimeHour
	case "day", "d":
		unit = expr.LimitTimeDay
	default:
		return nil
	}

	return []expr.Any{
		&expr.Limit{
			Type:  expr.LimitTypePkts,
			Rate:  rate,
			Unit:  unit,
			Burst: uint32(rate),
		},
	}
}

func accept() expr.Any {
	return &expr.Verdict{Kind: expr.VerdictAccept}
}

func drop() expr.Any {
	return &expr.Verdict{Kind: expr.VerdictDrop}
}
