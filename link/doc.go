// Package link is the lightlink datagram protocol between sensor node (client)
// and actuator node (server).
//
// Every request datagram is "framed": fixed 12 byte header followed by optional JSON body.
//
//	bytes 0..4   sequence number  uint32 big-endian
//	bytes 4..8   ack number       uint32 big-endian
//	bytes 8..12  flags            uint32 big-endian, bit0=SYN bit1=ACK bit2=FIN
//	bytes 12..   JSON body, only on ACK data segments
//
// Responses to data segments are "bare": JSON without header.
//
// Client performs SYN / SYN|ACK / ACK handshake once and keeps the only
// session state (sequence and ack counters). Server is stateless, every
// datagram is processed as a pure function of its header and body.
package link
