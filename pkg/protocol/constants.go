package protocol

import "errors"

// TA612C wire protocol constants.
//
// Frame layout in both directions:
//
//	header(2) | command(1) | length(1) | payload(0..N) | checksum(1)
//
// The length byte counts every byte after the two header bytes, including
// itself and the checksum. The checksum is the low 8 bits of the sum of all
// preceding bytes of the frame.

// Header markers. Direction matters: the host opens frames with 0xAA 0x55,
// the instrument answers with 0x55 0xAA. The parser must only ever match
// the device-to-host pair.
const (
	HostHeader1   byte = 0xAA
	HostHeader2   byte = 0x55
	DeviceHeader1 byte = 0x55
	DeviceHeader2 byte = 0xAA
)

// Command identifies a protocol operation.
type Command byte

const (
	CmdIdentify Command = 0x00 // stop streaming, report model/version
	CmdRead     Command = 0x01 // request one real-time 4-channel reading
	CmdDownload Command = 0x02 // download logged records
	CmdTimeSync Command = 0x03 // set the instrument clock
)

// String returns string representation of Command
func (c Command) String() string {
	switch c {
	case CmdIdentify:
		return "Identify"
	case CmdRead:
		return "Read"
	case CmdDownload:
		return "Download"
	case CmdTimeSync:
		return "TimeSync"
	default:
		return "Unknown"
	}
}

// Frame sizes
const (
	HeaderSize     = 2   // direction marker
	MinLengthValue = 3   // command + length byte + checksum
	MaxPayloadSize = 252 // length byte is 8 bits and counts 3 bytes of overhead
)

// Admissible temperature window in degrees Celsius. The instrument reports
// a sentinel in the thousands when a thermocouple lead is open, and no
// supported thermocouple type can exceed roughly 1820 degrees, so anything
// far outside physical range is an absent sensor, never data.
const (
	MinTemperature = -300.0
	MaxTemperature = 2000.0
)

// Errors
var (
	ErrPayloadTooLarge = errors.New("payload too large for one frame")
	ErrShortPayload    = errors.New("payload too short")
)
