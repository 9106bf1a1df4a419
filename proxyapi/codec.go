package proxyapi

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// frame is one decoded message off the wire: a message type plus its
// raw payload bytes. Payload encoding within a given messageType is
// not interpreted by the codec; callers decode the fields they need.
type frame struct {
	payload []byte
	msgType messageType
}

// messageType enumerates the subset of the proxy's native message
// vocabulary this client speaks. Numeric values match the wire
// protocol's own message-type field.
type messageType uint32

const (
	msgHello              messageType = 1
	msgHelloResponse       messageType = 2
	msgConnect             messageType = 3
	msgConnectResponse     messageType = 4
	msgDeviceInfoRequest   messageType = 9
	msgDeviceInfoResponse  messageType = 10
	msgPing                messageType = 7
	msgPong                messageType = 8
	msgBLEAdvertisement    messageType = 67
	msgBLEConnect          messageType = 68
	msgBLEConnectResponse  messageType = 69
	msgBLEDisconnect       messageType = 70
	msgBLEDisconnectResult messageType = 71
	msgBLEClearCache       messageType = 72
	msgBLEGetServices      messageType = 73
	msgBLEServicesResult   messageType = 74
	msgBLEServicesDone     messageType = 75
	msgBLEReadChar         messageType = 76
	msgBLEReadCharResult   messageType = 77
	msgBLEWriteChar        messageType = 78
	msgBLESubscribeNotify  messageType = 79
	msgBLENotifyData       messageType = 80
	msgSubscribeLogs       messageType = 28
	msgLogLine             messageType = 29
)

// frameIndicatorPlaintext is the fixed leading byte used in plaintext mode. Noise-
// encrypted transport (a distinct framing with a different indicator
// byte and an encrypted envelope) is out of scope: every proxy this
// bridge targets runs with plaintext API enabled, per deployment
// convention.
const frameIndicatorPlaintext = 0x00

// writeFrame encodes and writes one frame using the proxy's
// length-delimited plaintext framing: [0x00][varint len][varint
// msgType][payload].
func writeFrame(w io.Writer, msgType messageType, payload []byte) error {
	var header [2 * binary.MaxVarintLen32]byte
	n := binary.PutUvarint(header[:], uint64(len(payload)))
	n += binary.PutUvarint(header[n:], uint64(msgType))

	buf := make([]byte, 0, 1+n+len(payload))
	buf = append(buf, frameIndicatorPlaintext)
	buf = append(buf, header[:n]...)
	buf = append(buf, payload...)

	_, err := w.Write(buf)
	return err
}

// readFrame reads one frame from r, blocking until a full frame
// arrives or the connection errors.
func readFrame(r *bufio.Reader) (frame, error) {
	indicator, err := r.ReadByte()
	if err != nil {
		return frame{}, err
	}
	if indicator != frameIndicatorPlaintext {
		return frame{}, fmt.Errorf("proxyapi: unsupported frame indicator 0x%02x (noise encryption not supported)", indicator)
	}

	length, err := binary.ReadUvarint(r)
	if err != nil {
		return frame{}, fmt.Errorf("proxyapi: read frame length: %w", err)
	}
	rawType, err := binary.ReadUvarint(r)
	if err != nil {
		return frame{}, fmt.Errorf("proxyapi: read frame type: %w", err)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return frame{}, fmt.Errorf("proxyapi: read frame payload: %w", err)
		}
	}

	return frame{msgType: messageType(rawType), payload: payload}, nil
}
