package wireserver

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/flowgate/corerpc/funcid"
	"github.com/flowgate/corerpc/payload"
	"github.com/flowgate/corerpc/wire"
	"github.com/stretchr/testify/require"
)

func dialEcho(t *testing.T) (net.Conn, *Server) {
	srv := NewServer(payload.GobCodec{})
	addr, err := srv.Listen("127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()

	srv.RegisterName("echo", func(body, _ []byte) (any, []byte, uint8) {
		var s string
		_ = (payload.GobCodec{}).Decode(body, &s)
		return s, nil, 0
	})

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	return conn, srv
}

func writeRequest(t *testing.T, conn net.Conn, functionID uint64, seqNum uint32, body []byte) {
	buf := make([]byte, wire.ReqHeaderLen+len(body))
	wire.PutRequestHeader(buf, wire.RequestHeader{
		Magic:      wire.MagicNumber,
		FunctionID: functionID,
		Length:     uint32(len(body)),
		SeqNum:     seqNum,
	})
	copy(buf[wire.ReqHeaderLen:], body)
	_, err := conn.Write(buf)
	require.NoError(t, err)
}

func readResponse(t *testing.T, conn net.Conn) (wire.ResponseHeader, []byte) {
	var headerBuf [wire.RespHeaderLen]byte
	_, err := io.ReadFull(conn, headerBuf[:])
	require.NoError(t, err)
	h := wire.GetResponseHeader(headerBuf[:])
	body := make([]byte, h.Length)
	if h.Length > 0 {
		_, err = io.ReadFull(conn, body)
		require.NoError(t, err)
	}
	return h, body
}

func TestServerRespondsToKnownFunction(t *testing.T) {
	conn, srv := dialEcho(t)
	defer conn.Close()
	defer srv.Close()

	id := funcid.OfName("echo")
	body, err := (payload.GobCodec{}).Encode("ping")
	require.NoError(t, err)
	writeRequest(t, conn, id, 1, body)

	h, respBody := readResponse(t, conn)
	require.Equal(t, uint8(0), h.ErrCode)
	require.Equal(t, uint32(1), h.SeqNum)

	var got string
	require.NoError(t, (payload.GobCodec{}).Decode(respBody, &got))
	require.Equal(t, "ping", got)
}

func TestServerRespondsUnregisteredFunctionNotFound(t *testing.T) {
	conn, srv := dialEcho(t)
	defer conn.Close()
	defer srv.Close()

	body, err := (payload.GobCodec{}).Encode("ping")
	require.NoError(t, err)
	writeRequest(t, conn, 0xdeadbeef, 2, body)

	h, _ := readResponse(t, conn)
	require.Equal(t, uint8(0xFE), h.ErrCode)
	require.Equal(t, uint32(2), h.SeqNum)
}
