package protocol

import (
	"encoding/binary"
	"fmt"
)

// ChannelCount is the number of thermocouple inputs on the instrument.
const ChannelCount = 4

// ChannelValue is one thermocouple channel of a real-time reading.
// Valid is false when the lead is open or absent.
type ChannelValue struct {
	Celsius float64
	Valid   bool
}

// String returns the display form of the channel value.
func (c ChannelValue) String() string {
	if !c.Valid {
		return "----"
	}
	return fmt.Sprintf("%.1f", c.Celsius)
}

// Reading is one real-time 4-channel temperature sample.
type Reading [ChannelCount]ChannelValue

// Record is one logged 4-channel sample. Unlike Reading, no open-circuit
// filtering is applied to logged data.
type Record [ChannelCount]float64

// DeviceInfo identifies the instrument model and firmware.
type DeviceInfo struct {
	Model   uint16
	Version string
}

// DecodeReading decodes a command 0x01 payload: four little-endian signed
// 16-bit values in tenths of a degree. Values outside the admissible
// window mark an open thermocouple and decode as invalid channels.
func DecodeReading(payload []byte) (Reading, error) {
	var r Reading
	if len(payload) < 2*ChannelCount {
		return r, ErrShortPayload
	}
	for ch := 0; ch < ChannelCount; ch++ {
		raw := int16(binary.LittleEndian.Uint16(payload[2*ch:]))
		t := float64(raw) / 10.0
		if t < MinTemperature || t > MaxTemperature {
			continue
		}
		r[ch] = ChannelValue{Celsius: t, Valid: true}
	}
	return r, nil
}

// DecodeDeviceInfo decodes a command 0x00 payload: little-endian model
// code followed by a little-endian version code, presented as code/100
// with two decimals.
func DecodeDeviceInfo(payload []byte) (DeviceInfo, error) {
	if len(payload) < 4 {
		return DeviceInfo{}, ErrShortPayload
	}
	model := binary.LittleEndian.Uint16(payload[0:])
	version := binary.LittleEndian.Uint16(payload[2:])
	return DeviceInfo{
		Model:   model,
		Version: fmt.Sprintf("%.2f", float64(version)/100.0),
	}, nil
}

// DecodeRecords decodes a command 0x02 payload: repeated 8-byte groups of
// four little-endian signed 16-bit values in tenths of a degree. Trailing
// bytes that do not fill a complete group are ignored.
func DecodeRecords(payload []byte) []Record {
	const groupSize = 2 * ChannelCount
	records := make([]Record, 0, len(payload)/groupSize)
	for len(payload) >= groupSize {
		var rec Record
		for ch := 0; ch < ChannelCount; ch++ {
			raw := int16(binary.LittleEndian.Uint16(payload[2*ch:]))
			rec[ch] = float64(raw) / 10.0
		}
		records = append(records, rec)
		payload = payload[groupSize:]
	}
	return records
}
