// Package wire defines the fixed binary frame layout shared by corerpc's
// client and its test/demo server (internal/wireserver): a magic byte, a
// 64-bit function identifier, explicit body/attachment lengths, a sequence
// number for correlating replies to requests, and (response frames only) an
// application error code.
package wire

import "encoding/binary"

const (
	// MagicNumber marks the start of every request frame.
	MagicNumber byte = 0x21

	// ReqHeaderLen is the fixed size, in bytes, of a request header.
	ReqHeaderLen = 21
	// RespHeaderLen is the fixed size, in bytes, of a response header.
	RespHeaderLen = 13
)

// RequestHeader is the fixed-size prefix of every outbound request frame.
//
//	offset  size  field
//	0       1     magic
//	1       8     function_id
//	9       4     length        (body length)
//	13      4     attach_length
//	17      4     seq_num
type RequestHeader struct {
	Magic        byte
	FunctionID   uint64
	Length       uint32
	AttachLength uint32
	SeqNum       uint32
}

// PutRequestHeader encodes h into buf[:ReqHeaderLen]. Panics if buf is
// shorter than ReqHeaderLen.
func PutRequestHeader(buf []byte, h RequestHeader) {
	buf[0] = h.Magic
	binary.LittleEndian.PutUint64(buf[1:9], h.FunctionID)
	binary.LittleEndian.PutUint32(buf[9:13], h.Length)
	binary.LittleEndian.PutUint32(buf[13:17], h.AttachLength)
	binary.LittleEndian.PutUint32(buf[17:21], h.SeqNum)
}

// GetRequestHeader decodes a RequestHeader from buf[:ReqHeaderLen].
func GetRequestHeader(buf []byte) RequestHeader {
	return RequestHeader{
		Magic:        buf[0],
		FunctionID:   binary.LittleEndian.Uint64(buf[1:9]),
		Length:       binary.LittleEndian.Uint32(buf[9:13]),
		AttachLength: binary.LittleEndian.Uint32(buf[13:17]),
		SeqNum:       binary.LittleEndian.Uint32(buf[17:21]),
	}
}

// ResponseHeader is the fixed-size prefix of every inbound response frame.
//
//	offset  size  field
//	0       4     length        (body length)
//	4       4     attach_length
//	8       4     seq_num
//	12      1     err_code
type ResponseHeader struct {
	Length       uint32
	AttachLength uint32
	SeqNum       uint32
	ErrCode      uint8
}

// PutResponseHeader encodes h into buf[:RespHeaderLen].
func PutResponseHeader(buf []byte, h ResponseHeader) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Length)
	binary.LittleEndian.PutUint32(buf[4:8], h.AttachLength)
	binary.LittleEndian.PutUint32(buf[8:12], h.SeqNum)
	buf[12] = h.ErrCode
}

// GetResponseHeader decodes a ResponseHeader from buf[:RespHeaderLen].
func GetResponseHeader(buf []byte) ResponseHeader {
	return ResponseHeader{
		Length:       binary.LittleEndian.Uint32(buf[0:4]),
		AttachLength: binary.LittleEndian.Uint32(buf[4:8]),
		SeqNum:       binary.LittleEndian.Uint32(buf[8:12]),
		ErrCode:      buf[12],
	}
}

// FitsUint32 reports whether n can be carried in a u32 length field.
func FitsUint32(n int) bool {
	return n >= 0 && uint64(n) <= 1<<32-1
}
