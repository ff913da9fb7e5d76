package wire

import "testing"

func TestRequestHeaderRoundTrip(t *testing.T) {
	h := RequestHeader{
		Magic:        MagicNumber,
		FunctionID:   0xdeadbeefcafebabe,
		Length:       123,
		AttachLength: 456,
		SeqNum:       789,
	}
	buf := make([]byte, ReqHeaderLen)
	PutRequestHeader(buf, h)

	got := GetRequestHeader(buf)
	if got != h {
		t.Fatalf("got %+v, want %+v", got, h)
	}
}

func TestResponseHeaderRoundTrip(t *testing.T) {
	h := ResponseHeader{
		Length:       1,
		AttachLength: 2,
		SeqNum:       3,
		ErrCode:      0xFF,
	}
	buf := make([]byte, RespHeaderLen)
	PutResponseHeader(buf, h)

	got := GetResponseHeader(buf)
	if got != h {
		t.Fatalf("got %+v, want %+v", got, h)
	}
}

func TestFitsUint32(t *testing.T) {
	cases := []struct {
		n    int
		want bool
	}{
		{0, true},
		{-1, false},
		{1 << 20, true},
	}
	for _, c := range cases {
		if got := FitsUint32(c.n); got != c.want {
			t.Errorf("FitsUint32(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}
