package protocol

// TA612C checksum: arithmetic sum of all bytes preceding the checksum
// byte, truncated to the low 8 bits.

// Checksum calculates the additive checksum of data.
func Checksum(data []byte) byte {
	var sum uint32
	for _, b := range data {
		sum += uint32(b)
	}
	return byte(sum)
}

// VerifyChecksum verifies that frame ends with the correct checksum byte.
func VerifyChecksum(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	return Checksum(frame[:len(frame)-1]) == frame[len(frame)-1]
}

// AppendChecksum appends the checksum of data and returns a new slice.
func AppendChecksum(data []byte) []byte {
	result := make([]byte, len(data)+1)
	copy(result, data)
	result[len(data)] = Checksum(data)
	return result
}
