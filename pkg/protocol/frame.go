package protocol

import (
	"fmt"
	"time"
)

// Frame represents one decoded device-to-host message.
// It is ephemeral: constructed by Extract, consumed by the dispatch step.
type Frame struct {
	Command Command
	Payload []byte
}

// String returns a string representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{Cmd=%s, Payload=[% X]}", f.Command, f.Payload)
}

// Prebuilt host-to-device frames for the three payload-less commands.
// Built once and reused; treat as read-only.
var (
	IdentifyFrame = mustBuild(CmdIdentify, nil)
	ReadFrame     = mustBuild(CmdRead, nil)
	DownloadFrame = mustBuild(CmdDownload, nil)
)

func mustBuild(cmd Command, payload []byte) []byte {
	frame, err := BuildCommand(cmd, payload)
	if err != nil {
		panic(err)
	}
	return frame
}

// BuildCommand builds a complete host-to-device command frame.
// The length byte counts command + length byte + payload + checksum.
func BuildCommand(cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	frame := make([]byte, 0, HeaderSize+MinLengthValue+len(payload))
	frame = append(frame, HostHeader1, HostHeader2)
	frame = append(frame, byte(cmd))
	frame = append(frame, byte(MinLengthValue+len(payload)))
	frame = append(frame, payload...)

	return AppendChecksum(frame), nil
}

// BuildTimeSync builds a clock-set frame from the given timestamp.
// The payload is 7 BCD bytes: century, year-in-century, month, day,
// hour, minute, second.
func BuildTimeSync(t time.Time) []byte {
	year := t.Year()
	payload := []byte{
		bcd(year / 100),
		bcd(year % 100),
		bcd(int(t.Month())),
		bcd(t.Day()),
		bcd(t.Hour()),
		bcd(t.Minute()),
		bcd(t.Second()),
	}
	// 7-byte payload always fits one frame
	return mustBuild(CmdTimeSync, payload)
}

// bcd encodes a two-digit decimal value, tens digit in the high nibble.
func bcd(v int) byte {
	return byte(v/10<<4 | v%10)
}

// Extract scans buf for the next complete, checksum-valid device-to-host
// frame. It returns the decoded frame and the bytes to retain for the next
// scan, or (nil, retained) when no complete frame is available yet.
//
// The link delivers bytes in arbitrary chunk boundaries and may produce
// spurious bytes at connection start or after noise, so Extract never
// assumes frame-aligned delivery:
//
//   - bytes before a header are discarded as noise
//   - an incomplete candidate frame is retained from its header onward
//   - a candidate whose checksum fails is treated as a false header match:
//     the scan advances a single byte and continues, since a genuine header
//     may begin inside the bad candidate
//   - with no header found at all, only a trailing 0x55 is retained, as it
//     may be a header split across two deliveries
//
// Callers invoke Extract repeatedly until it returns a nil frame.
func Extract(buf []byte) (*Frame, []byte) {
	start := 0
	for {
		idx := findHeader(buf, start)
		if idx < 0 {
			if n := len(buf); n > 0 && buf[n-1] == DeviceHeader1 {
				return nil, buf[n-1:]
			}
			return nil, nil
		}

		// Command and length bytes not delivered yet
		if len(buf)-idx < HeaderSize+2 {
			return nil, buf[idx:]
		}

		length := int(buf[idx+3])
		if length < MinLengthValue {
			// Cannot be a real frame; resync one byte past the match
			start = idx + 1
			continue
		}

		total := HeaderSize + length
		if len(buf)-idx < total {
			return nil, buf[idx:]
		}

		candidate := buf[idx : idx+total]
		if !VerifyChecksum(candidate) {
			start = idx + 1
			continue
		}

		payload := make([]byte, total-HeaderSize-MinLengthValue)
		copy(payload, candidate[4:total-1])

		frame := &Frame{
			Command: Command(candidate[2]),
			Payload: payload,
		}
		return frame, buf[idx+total:]
	}
}

// findHeader returns the index of the first device-to-host header pair at
// or after start, or -1.
func findHeader(buf []byte, start int) int {
	for i := start; i+1 < len(buf); i++ {
		if buf[i] == DeviceHeader1 && buf[i+1] == DeviceHeader2 {
			return i
		}
	}
	return -1
}
