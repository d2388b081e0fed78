package buffer_manager

import (
	"bytes"
	"errors"
	"testing"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
)

func newManager(t *testing.T, b backend.Backend, opts ...BufferManagerBuilderOption) BufferManager {
	t.Helper()
	m, err := NewBufferManager(b, opts...)
	if err != nil {
		t.Fatalf("NewBufferManager() error = %v", err)
	}
	return m
}

func TestUniformBlockSizes(t *testing.T) {
	if got := unsafe.Sizeof(FrameUniforms{}); got != FrameUniformsSize {
		t.Errorf("sizeof(FrameUniforms) = %d, want %d", got, FrameUniformsSize)
	}
}

func TestEnsureCapacityTwiceDoesNotReallocate(t *testing.T) {
	b := backend.NewRecordingBackend()
	m := newManager(t, b, WithInitialCapacity(KindVertex, 100))

	grew, err := m.EnsureCapacity(KindVertex, 10000)
	if err != nil || !grew {
		t.Fatalf("EnsureCapacity(10000) = %v, %v, want true, nil", grew, err)
	}
	first := m.Buffer(KindVertex)

	grew, err = m.EnsureCapacity(KindVertex, 10000)
	if err != nil || grew {
		t.Fatalf("second EnsureCapacity(10000) = %v, %v, want false, nil", grew, err)
	}
	if m.Buffer(KindVertex) != first {
		t.Error("buffer replaced without growth")
	}
	if got := m.Reallocations(KindVertex); got != 1 {
		t.Errorf("Reallocations = %d, want 1", got)
	}
}

func TestGrowthPolicy(t *testing.T) {
	tests := []struct {
		name     string
		initial  int
		required int
		want     int
	}{
		{name: "factor wins", initial: 1000, required: 1100, want: 1500},
		{name: "required wins", initial: 1000, required: 4000, want: 4000},
		{name: "fits", initial: 1000, required: 1000, want: 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(t, backend.NewRecordingBackend(), WithInitialCapacity(KindIndex, tt.initial))
			if _, err := m.EnsureCapacity(KindIndex, tt.required); err != nil {
				t.Fatalf("EnsureCapacity() error = %v", err)
			}
			if got := m.Capacity(KindIndex); got != tt.want {
				t.Errorf("Capacity = %d, want %d", got, tt.want)
			}
			if got := m.Buffer(KindIndex).Size(); got < uint64(tt.want)*KindIndex.ElementSize() {
				t.Errorf("buffer size = %d, smaller than capacity", got)
			}
		})
	}
}

func TestGrowthCappedAtDeviceLimit(t *testing.T) {
	b := backend.NewRecordingBackend(backend.WithLimits(backend.Limits{MaxBufferSize: 4000, MaxTextureDimension2D: 64}))
	m := newManager(t, b, WithInitialCapacity(KindVertex, 150), WithInitialCapacity(KindIndex, 16))

	// 150 * 1.5 = 225 vertices would need 4500 bytes; 200 is the most the device allows.
	if _, err := m.EnsureCapacity(KindVertex, 160); err != nil {
		t.Fatalf("EnsureCapacity(160) error = %v", err)
	}
	if got := m.Capacity(KindVertex); got != 200 {
		t.Errorf("Capacity = %d, want 200", got)
	}

	_, err := m.EnsureCapacity(KindVertex, 201)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("EnsureCapacity(201) error = %v, want ErrCapacityExceeded", err)
	}
	if got := m.Capacity(KindVertex); got != 200 {
		t.Errorf("Capacity after failure = %d, want 200", got)
	}
}

func TestWriteGrowsAndReadsBack(t *testing.T) {
	b := backend.NewRecordingBackend()
	m := newManager(t, b, WithInitialCapacity(KindIndex, 2))

	data := []byte{1, 0, 2, 0, 3, 0}
	if err := m.Write(KindIndex, data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if m.Reallocations(KindIndex) != 1 {
		t.Errorf("Reallocations = %d, want 1", m.Reallocations(KindIndex))
	}
	got := b.ReadBuffer(m.Buffer(KindIndex))
	if !bytes.Equal(got[:len(data)], data) {
		t.Errorf("readback = %v, want prefix %v", got, data)
	}
	if len(b.Violations()) != 0 {
		t.Errorf("Violations = %v", b.Violations())
	}
}

func TestReplacedBufferIsDeferred(t *testing.T) {
	b := backend.NewRecordingBackend()
	m := newManager(t, b, WithInitialCapacity(KindVertex, 1))
	live := b.LiveResources()

	_ = b.BeginFrame()
	if _, err := m.EnsureCapacity(KindVertex, 64); err != nil {
		t.Fatalf("EnsureCapacity() error = %v", err)
	}
	if got := b.PendingReleases(); got != 1 {
		t.Fatalf("PendingReleases = %d, want 1", got)
	}
	_ = b.EndFrame()
	if n := b.CollectRetired(); n != 0 {
		t.Errorf("CollectRetired before retire = %d, want 0", n)
	}
	b.Retire()
	if n := b.CollectRetired(); n != 1 {
		t.Errorf("CollectRetired after retire = %d, want 1", n)
	}
	if got := b.LiveResources(); got != live {
		t.Errorf("LiveResources = %d, want %d", got, live)
	}
}

func TestFrameUniforms(t *testing.T) {
	b := backend.NewRecordingBackend()
	m := newManager(t, b)

	u := NewFrameUniforms(common.Rect{MaxX: 200, MaxY: 100}, 0.5)
	if err := m.WriteFrameUniforms(u); err != nil {
		t.Fatalf("WriteFrameUniforms() error = %v", err)
	}
	got := b.ReadBuffer(m.FrameUniformBuffer())
	if !bytes.Equal(got, common.StructToBytes(&u)) {
		t.Error("frame uniform readback differs from written block")
	}
	if u.Projection[0] != 2.0/200 || u.Projection[5] != -2.0/100 {
		t.Errorf("projection scale = %v, %v", u.Projection[0], u.Projection[5])
	}
}
