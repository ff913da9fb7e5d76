package payload

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrorRecord is the structured error body carried by a response whose
// err_code is 0xFF (spec.md §4.1): unlike the 0x01..0xFE range it does not
// force the connection closed, and carries a machine-checkable code instead
// of only a human message.
type ErrorRecord struct {
	Code    uint32
	Message string
}

// EncodeErrorRecord marshals r as a protobuf structpb.Struct — a message
// type shipped already-compiled by google.golang.org/protobuf, so no
// code generation step is needed for this one fixed shape.
func EncodeErrorRecord(r ErrorRecord) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"code":    float64(r.Code),
		"message": r.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("payload: build error record: %w", err)
	}
	return proto.Marshal(s)
}

// DecodeErrorRecord reverses EncodeErrorRecord.
func DecodeErrorRecord(data []byte) (ErrorRecord, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return ErrorRecord{}, fmt.Errorf("payload: unmarshal error record: %w", err)
	}
	fields := s.GetFields()
	rec := ErrorRecord{}
	if v, ok := fields["code"]; ok {
		rec.Code = uint32(v.GetNumberValue())
	}
	if v, ok := fields["message"]; ok {
		rec.Message = v.GetStringValue()
	}
	return rec, nil
}
