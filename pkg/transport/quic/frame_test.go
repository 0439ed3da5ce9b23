package quic

import (
	"bytes"
	"testing"
	"time"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, []byte("reliable payload")); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	payload, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if string(payload) != "reliable payload" {
		t.Fatalf("expected payload round-trip, got %q", payload)
	}
}

func TestHelloFrameIsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, nil); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	if buf.Len() != 4 {
		t.Fatalf("expected bare 4-byte header, got %d bytes", buf.Len())
	}

	payload, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if len(payload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(payload))
	}
}

func TestFrameRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, make([]byte, maxFrameSize+1)); err == nil {
		t.Fatalf("expected oversize write to fail")
	}

	// A header claiming an oversize frame must be rejected before any
	// allocation happens.
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := readFrame(&buf); err == nil {
		t.Fatalf("expected oversize header to fail")
	}
}

func TestFrameRejectsTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, []byte("full payload")); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-3])

	if _, err := readFrame(truncated); err == nil {
		t.Fatalf("expected truncated frame to fail")
	}
}

func TestDataDatagramEncoding(t *testing.T) {
	d := encodeDataDatagram([]byte("u1"))
	if d[0] != datagramData {
		t.Fatalf("expected data kind byte, got 0x%02x", d[0])
	}
	if string(d[1:]) != "u1" {
		t.Fatalf("expected payload after kind byte, got %q", d[1:])
	}
}

func TestProbeRoundTrip(t *testing.T) {
	at := time.Unix(1700000000, 123456789)
	d := encodeProbe(datagramPing, at)
	if len(d) != 9 || d[0] != datagramPing {
		t.Fatalf("unexpected probe encoding %v", d)
	}

	got, ok := decodeProbe(d)
	if !ok {
		t.Fatalf("expected probe to decode")
	}
	if !got.Equal(at) {
		t.Fatalf("expected %v, got %v", at, got)
	}

	if _, ok := decodeProbe([]byte{datagramPing, 1, 2}); ok {
		t.Fatalf("expected short probe to be rejected")
	}
}
