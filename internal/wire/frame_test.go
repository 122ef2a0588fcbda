package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
)

func TestWriteFrameLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello")); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	want := []byte{0x00, 0x00, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o'}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("frame = % x, want % x", buf.Bytes(), want)
	}
}

func TestReadFrame(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    []byte
		wantErr error
	}{
		{
			name: "complete frame",
			data: []byte{0, 0, 0, 3, 'a', 'b', 'c'},
			want: []byte("abc"),
		},
		{
			name: "zero length frame",
			data: []byte{0, 0, 0, 0},
			want: []byte{},
		},
		{
			name:    "clean close before header",
			data:    nil,
			wantErr: io.EOF,
		},
		{
			name:    "partial header",
			data:    []byte{0, 0},
			wantErr: ErrTruncatedFrame,
		},
		{
			name:    "partial payload",
			data:    []byte{0, 0, 0, 5, 'a', 'b'},
			wantErr: ErrTruncatedFrame,
		},
		{
			name:    "close after header",
			data:    []byte{0, 0, 0, 5},
			wantErr: io.EOF,
		},
		{
			name:    "oversized announcement",
			data:    []byte{0xff, 0xff, 0xff, 0xff},
			wantErr: ErrFrameTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadFrame(bytes.NewReader(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReadFrame() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadFrame() unexpected error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("ReadFrame() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteFrameTooLarge(t *testing.T) {
	err := WriteFrame(io.Discard, make([]byte, MaxFrameSize+1))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("WriteFrame() error = %v, want ErrFrameTooLarge", err)
	}
}

func TestReadFrameSequence(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{[]byte("one"), {}, []byte("three")}
	for _, p := range payloads {
		if err := WriteFrame(&buf, p); err != nil {
			t.Fatalf("WriteFrame() error = %v", err)
		}
	}

	for i, want := range payloads {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("frame %d: ReadFrame() error = %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d = %q, want %q", i, got, want)
		}
	}

	if _, err := ReadFrame(&buf); !errors.Is(err, io.EOF) {
		t.Errorf("after last frame error = %v, want io.EOF", err)
	}
}

// TestMessageOverPipe exercises framing across a real stream where the reader
// may see the frame in arbitrary chunks.
func TestMessageOverPipe(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sent := &ClientRequest{
		Command:    CmdControlDevice,
		DeviceID:   "smart_lamp_10.0.0.5_41000",
		Action:     "SET_BRIGHTNESS",
		Parameters: `{"brightness": 80}`,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- WriteMessage(client, sent) }()

	var got ClientRequest
	if err := ReadMessage(server, &got); err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	if got != *sent {
		t.Errorf("ReadMessage() = %+v, want %+v", got, *sent)
	}
}

func TestReadFrameHeaderIsBigEndian(t *testing.T) {
	payload := bytes.Repeat([]byte{'x'}, 300)
	data := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(data, uint32(len(payload)))
	copy(data[HeaderSize:], payload)

	got, err := ReadFrame(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if len(got) != 300 {
		t.Errorf("len(payload) = %d, want 300", len(got))
	}
}

func TestDeviceCommandFrameRoundTrip(t *testing.T) {
	sent := &DeviceCommand{Command: "SET_TEMPERATURE", Parameters: `{"temperature":22}`}

	var buf bytes.Buffer
	if err := WriteMessage(&buf, sent); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	var got DeviceCommand
	if err := ReadMessage(&buf, &got); err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if got != *sent {
		t.Errorf("ReadMessage() = %+v, want %+v", got, *sent)
	}
	if buf.Len() != 0 {
		t.Errorf("%d bytes left after one message", buf.Len())
	}
}
