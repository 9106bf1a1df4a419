package proxyapi

import (
	"bufio"
	"bytes"
	"testing"
)

func TestWriteFrameReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0x01, 0x02, 0x03}
	if err := writeFrame(&buf, msgBLEAdvertisement, payload); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	f, err := readFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if f.msgType != msgBLEAdvertisement {
		t.Fatalf("expected msgType %d, got %d", msgBLEAdvertisement, f.msgType)
	}
	if !bytes.Equal(f.payload, payload) {
		t.Fatalf("expected payload %v, got %v", payload, f.payload)
	}
}

func TestReadFrameRejectsNonPlaintextIndicator(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x01, 0x00, 0x00})
	if _, err := readFrame(bufio.NewReader(buf)); err == nil {
		t.Fatalf("expected error for non-plaintext frame indicator")
	}
}

func TestWriteFrameReadFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, msgPing, nil); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	f, err := readFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if len(f.payload) != 0 {
		t.Fatalf("expected empty payload, got %v", f.payload)
	}
}
