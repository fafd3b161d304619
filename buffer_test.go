package glim_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/glim"
	"github.com/gogpu/glim/backend/trace"
)

func TestMappedBufferMergesDirtyRange(t *testing.T) {
	dev := trace.New()
	reg := glim.NewRegistry(dev)

	buf, err := glim.NewMappedBuffer(reg, glim.BufferVertex, 64, glim.UsageStatic)
	if err != nil {
		t.Fatalf("NewMappedBuffer: %v", err)
	}
	dev.ResetTrace()

	// Three writes, one upload covering their conservative union.
	buf.Write(0, []byte{1, 2})
	buf.Write(30, []byte{3, 4})
	buf.Write(10, []byte{5})
	if got := dev.Count("BufferSubData"); got != 0 {
		t.Fatalf("writes reached the device before Unmap: %d", got)
	}

	if err := buf.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if got := dev.Count("BufferSubData"); got != 1 {
		t.Fatalf("BufferSubData count = %d, want 1", got)
	}
	if call := dev.Calls[0]; !strings.Contains(call, "offset=0") || !strings.Contains(call, "size=32") {
		t.Fatalf("upload = %q, want offset=0 size=32", call)
	}

	// Clean buffer: Unmap is a no-op.
	if err := buf.Unmap(); err != nil {
		t.Fatalf("second Unmap: %v", err)
	}
	if got := dev.Count("BufferSubData"); got != 1 {
		t.Fatalf("clean Unmap uploaded again: %d", got)
	}
}

func TestMappedBufferUploadStrategies(t *testing.T) {
	cases := []struct {
		name       string
		usage      glim.BufferUsage
		writeLen   int
		wantMethod string
	}{
		{"stream orphans", glim.UsageStream, 4, "BufferData"},
		{"static writes range", glim.UsageStatic, 60, "BufferSubData"},
		{"dynamic small range", glim.UsageDynamic, 10, "BufferSubData"},
		{"dynamic large range", glim.UsageDynamic, 40, "BufferData"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dev := trace.New()
			reg := glim.NewRegistry(dev)
			buf, err := glim.NewMappedBuffer(reg, glim.BufferVertex, 60, tc.usage)
			if err != nil {
				t.Fatalf("NewMappedBuffer: %v", err)
			}
			dev.ResetTrace()

			buf.Write(0, make([]byte, tc.writeLen))
			if err := buf.Unmap(); err != nil {
				t.Fatalf("Unmap: %v", err)
			}
			if got := dev.Count(tc.wantMethod); got != 1 {
				t.Fatalf("%s count = %d, want 1 (calls: %v)", tc.wantMethod, got, dev.Calls)
			}
		})
	}
}

func TestMappedBufferWriteOverflow(t *testing.T) {
	dev := trace.New()
	reg := glim.NewRegistry(dev)
	buf, _ := glim.NewMappedBuffer(reg, glim.BufferVertex, 8, glim.UsageStatic)

	if err := buf.Write(6, []byte{1, 2, 3}); !errors.Is(err, glim.ErrBufferOverflow) {
		t.Fatalf("Write = %v, want ErrBufferOverflow", err)
	}
	// The failed write must not dirty the buffer.
	dev.ResetTrace()
	if err := buf.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if got := len(dev.Calls); got != 0 {
		t.Fatalf("failed write left the buffer dirty: %v", dev.Calls)
	}
}

func TestMappedBufferResizeFlushesPendingWrites(t *testing.T) {
	dev := trace.New()
	reg := glim.NewRegistry(dev)
	buf, _ := glim.NewMappedBuffer(reg, glim.BufferVertex, 12, glim.UsageStatic)

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if err := buf.Write(0, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// Resize before Unmap: the pending write survives into the grown
	// storage on both CPU and device.
	if err := buf.Resize(24); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if buf.Len() != 24 {
		t.Fatalf("Len = %d, want 24", buf.Len())
	}

	contents, err := buf.Contents()
	if err != nil {
		t.Fatalf("Contents: %v", err)
	}
	if string(contents[:12]) != string(data) {
		t.Fatalf("prefix = %v, want %v", contents[:12], data)
	}

	store := dev.BufferBytes(1)
	if len(store) != 24 || string(store[:12]) != string(data) {
		t.Fatalf("device store = %v, want 24 bytes with surviving prefix", store)
	}
}
