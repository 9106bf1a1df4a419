package proxyapi

import "encoding/binary"

// The payload encoding below is a minimal field-tagged scheme (tag
// byte, then a type-appropriate value) sufficient for the handful of
// fields each message needs. It mirrors the shape of the proxy's own
// wire format without reproducing its full schema, which this client
// treats as opaque per its contract.

type fieldWriter struct {
	buf []byte
}

func (w *fieldWriter) varint(tag byte, v uint64) {
	w.buf = append(w.buf, tag)
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf = append(w.buf, tmp[:n]...)
}

func (w *fieldWriter) bytesField(tag byte, v []byte) {
	w.buf = append(w.buf, tag)
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(v)))
	w.buf = append(w.buf, tmp[:n]...)
	w.buf = append(w.buf, v...)
}

func (w *fieldWriter) str(tag byte, v string) {
	w.bytesField(tag, []byte(v))
}

func (w *fieldWriter) bool(tag byte, v bool) {
	if v {
		w.varint(tag, 1)
	} else {
		w.varint(tag, 0)
	}
}

func (w *fieldWriter) bytes() []byte { return w.buf }

type fieldReader struct {
	buf []byte
	pos int
}

func newFieldReader(buf []byte) *fieldReader { return &fieldReader{buf: buf} }

func (r *fieldReader) next() (tag byte, payload []byte, ok bool) {
	if r.pos >= len(r.buf) {
		return 0, nil, false
	}
	tag = r.buf[r.pos]
	r.pos++
	return tag, nil, true
}

func (r *fieldReader) varint() uint64 {
	v, n := binary.Uvarint(r.buf[r.pos:])
	r.pos += n
	return v
}

func (r *fieldReader) bytesField() []byte {
	length := int(r.varint())
	v := r.buf[r.pos : r.pos+length]
	r.pos += length
	return v
}

func (r *fieldReader) str() string { return string(r.bytesField()) }
func (r *fieldReader) bool() bool  { return r.varint() != 0 }

const (
	fieldAddress     byte = 1
	fieldAddrType    byte = 2
	fieldWithoutCache byte = 3
	fieldHandle      byte = 4
	fieldData        byte = 5
	fieldWithResponse byte = 6
	fieldName        byte = 7
	fieldPassword    byte = 8
	fieldRSSI        byte = 9
	fieldConnected   byte = 10
	fieldErrorCode   byte = 11
	fieldMTU         byte = 12
	fieldServiceUUID byte = 13
	fieldCharUUID    byte = 14
	fieldLine        byte = 15
	fieldAPIVersion  byte = 16
	fieldBLEProxy    byte = 17
)

// helloRequest is the first message sent after dialing. It carries the
// client name only; no API version is sent.
type helloRequest struct {
	ClientInfo string
}

func (m helloRequest) encode() []byte {
	w := &fieldWriter{}
	w.str(fieldName, m.ClientInfo)
	return w.bytes()
}

// helloResponse carries the server name (checked against the
// configured expected name) and declared feature flags.
type helloResponse struct {
	ServerName      string
	APIVersionMajor uint64
	BLEProxySupport bool
}

func decodeHelloResponse(payload []byte) helloResponse {
	r := newFieldReader(payload)
	var resp helloResponse
	for {
		tag, _, ok := r.next()
		if !ok {
			break
		}
		switch tag {
		case fieldName:
			resp.ServerName = r.str()
		case fieldAPIVersion:
			resp.APIVersionMajor = r.varint()
		case fieldBLEProxy:
			resp.BLEProxySupport = r.bool()
		}
	}
	return resp
}

// connectRequest authenticates the session (password may be empty).
type connectRequest struct {
	Password string
}

func (m connectRequest) encode() []byte {
	w := &fieldWriter{}
	w.str(fieldPassword, m.Password)
	return w.bytes()
}

type connectResponse struct {
	InvalidPassword bool
}

func decodeConnectResponse(payload []byte) connectResponse {
	r := newFieldReader(payload)
	var resp connectResponse
	for {
		tag, _, ok := r.next()
		if !ok {
			break
		}
		if tag == fieldErrorCode {
			resp.InvalidPassword = r.bool()
		}
	}
	return resp
}

// bleAdvertisement is a received advertisement.
type bleAdvertisement struct {
	Name    string
	Address uint64
	RSSI    int8
}

func decodeBLEAdvertisement(payload []byte) bleAdvertisement {
	r := newFieldReader(payload)
	var adv bleAdvertisement
	for {
		tag, _, ok := r.next()
		if !ok {
			break
		}
		switch tag {
		case fieldName:
			adv.Name = r.str()
		case fieldAddress:
			adv.Address = r.varint()
		case fieldRSSI:
			adv.RSSI = int8(r.varint())
		}
	}
	return adv
}

// bleConnectRequest issues a device_connect operation.
type bleConnectRequest struct {
	Address      uint64
	AddressType  uint32
	WithoutCache bool
}

func (m bleConnectRequest) encode() []byte {
	w := &fieldWriter{}
	w.varint(fieldAddress, m.Address)
	w.varint(fieldAddrType, uint64(m.AddressType))
	w.bool(fieldWithoutCache, m.WithoutCache)
	return w.bytes()
}

// bleConnectResponse is the (possibly asynchronous) reply to
// bleConnectRequest.
type bleConnectResponse struct {
	Address   uint64
	ErrorCode uint16
	MTU       uint16
	Connected bool
}

func decodeBLEConnectResponse(payload []byte) bleConnectResponse {
	r := newFieldReader(payload)
	var resp bleConnectResponse
	for {
		tag, _, ok := r.next()
		if !ok {
			break
		}
		switch tag {
		case fieldAddress:
			resp.Address = r.varint()
		case fieldConnected:
			resp.Connected = r.bool()
		case fieldErrorCode:
			resp.ErrorCode = uint16(r.varint())
		case fieldMTU:
			resp.MTU = uint16(r.varint())
		}
	}
	return resp
}

type bleDisconnectRequest struct {
	Address uint64
}

func (m bleDisconnectRequest) encode() []byte {
	w := &fieldWriter{}
	w.varint(fieldAddress, m.Address)
	return w.bytes()
}

type bleClearCacheRequest struct {
	Address uint64
}

func (m bleClearCacheRequest) encode() []byte {
	w := &fieldWriter{}
	w.varint(fieldAddress, m.Address)
	return w.bytes()
}

type bleGetServicesRequest struct {
	Address uint64
}

func (m bleGetServicesRequest) encode() []byte {
	w := &fieldWriter{}
	w.varint(fieldAddress, m.Address)
	return w.bytes()
}

// bleServiceResult is one GATT service/characteristic pair delivered
// by the proxy; list_services accumulates these until a "done"
// message arrives for the same address.
type bleServiceResult struct {
	Address      uint64
	ServiceUUID  string
	CharUUID     string
	CharHandle   uint16
}

func decodeBLEServiceResult(payload []byte) bleServiceResult {
	r := newFieldReader(payload)
	var s bleServiceResult
	for {
		tag, _, ok := r.next()
		if !ok {
			break
		}
		switch tag {
		case fieldAddress:
			s.Address = r.varint()
		case fieldServiceUUID:
			s.ServiceUUID = r.str()
		case fieldCharUUID:
			s.CharUUID = r.str()
		case fieldHandle:
			s.CharHandle = uint16(r.varint())
		}
	}
	return s
}

type bleReadCharRequest struct {
	Address uint64
	Handle  uint16
}

func (m bleReadCharRequest) encode() []byte {
	w := &fieldWriter{}
	w.varint(fieldAddress, m.Address)
	w.varint(fieldHandle, uint64(m.Handle))
	return w.bytes()
}

type bleReadCharResult struct {
	Address uint64
	Handle  uint16
	Data    []byte
}

func decodeBLEReadCharResult(payload []byte) bleReadCharResult {
	r := newFieldReader(payload)
	var res bleReadCharResult
	for {
		tag, _, ok := r.next()
		if !ok {
			break
		}
		switch tag {
		case fieldAddress:
			res.Address = r.varint()
		case fieldHandle:
			res.Handle = uint16(r.varint())
		case fieldData:
			res.Data = append([]byte(nil), r.bytesField()...)
		}
	}
	return res
}

type bleWriteCharRequest struct {
	Address      uint64
	Handle       uint16
	Data         []byte
	WithResponse bool
}

func (m bleWriteCharRequest) encode() []byte {
	w := &fieldWriter{}
	w.varint(fieldAddress, m.Address)
	w.varint(fieldHandle, uint64(m.Handle))
	w.bytesField(fieldData, m.Data)
	w.bool(fieldWithResponse, m.WithResponse)
	return w.bytes()
}

type bleSubscribeNotifyRequest struct {
	Address uint64
	Handle  uint16
}

func (m bleSubscribeNotifyRequest) encode() []byte {
	w := &fieldWriter{}
	w.varint(fieldAddress, m.Address)
	w.varint(fieldHandle, uint64(m.Handle))
	return w.bytes()
}

type bleNotifyData struct {
	Address uint64
	Handle  uint16
	Data    []byte
}

func decodeBLENotifyData(payload []byte) bleNotifyData {
	r := newFieldReader(payload)
	var n bleNotifyData
	for {
		tag, _, ok := r.next()
		if !ok {
			break
		}
		switch tag {
		case fieldAddress:
			n.Address = r.varint()
		case fieldHandle:
			n.Handle = uint16(r.varint())
		case fieldData:
			n.Data = append([]byte(nil), r.bytesField()...)
		}
	}
	return n
}

type logLine struct {
	Line string
}

func decodeLogLine(payload []byte) logLine {
	r := newFieldReader(payload)
	var l logLine
	for {
		tag, _, ok := r.next()
		if !ok {
			break
		}
		if tag == fieldLine {
			l.Line = r.str()
		}
	}
	return l
}
