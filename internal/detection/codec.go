package detection

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/edge-sentry/ipcbridge/internal/pubsub"
)

// Wire layout (see SPEC_FULL.md §3):
//
//	offset 0  : magic byte (magicByte)
//	offset 1  : schema version
//	offset 2  : frame_number (u64 LE)
//	offset 10 : timestamp_ns (u64 LE)
//	offset 18 : camera_id    (u32 LE)
//	offset 22 : box_count    (u32 LE)
//	offset 26 : boxes        (box_count * boxWireSize bytes)
const (
	magicByte   = 0xD3
	version     = 1
	headerSize  = 26
	boxWireSize = 24 // x1,y1,x2,y2,confidence (5 x f32) + class_id (u32)
)

type codec struct{}

func (codec) Encode(v Detection, dst []byte) (int, error) {
	need := headerSize + len(v.Boxes)*boxWireSize
	if need > len(dst) {
		return 0, errors.Wrapf(pubsub.ErrPayloadTooLarge, "detection needs %d bytes, slot payload is %d", need, len(dst))
	}

	dst[0] = magicByte
	dst[1] = version
	binary.LittleEndian.PutUint64(dst[2:], v.FrameNumber)
	binary.LittleEndian.PutUint64(dst[10:], v.TimestampNs)
	binary.LittleEndian.PutUint32(dst[18:], v.CameraID)
	binary.LittleEndian.PutUint32(dst[22:], uint32(len(v.Boxes)))

	off := headerSize
	for _, b := range v.Boxes {
		binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(b.X1))
		binary.LittleEndian.PutUint32(dst[off+4:], math.Float32bits(b.Y1))
		binary.LittleEndian.PutUint32(dst[off+8:], math.Float32bits(b.X2))
		binary.LittleEndian.PutUint32(dst[off+12:], math.Float32bits(b.Y2))
		binary.LittleEndian.PutUint32(dst[off+16:], math.Float32bits(b.Confidence))
		binary.LittleEndian.PutUint32(dst[off+20:], b.ClassID)
		off += boxWireSize
	}

	return need, nil
}

func (codec) Verify(src []byte) (Detection, error) {
	var zero Detection

	if len(src) < headerSize {
		return zero, errors.Wrapf(pubsub.ErrInvalidEncoding, "detection payload shorter than header (%d < %d)", len(src), headerSize)
	}
	if src[0] != magicByte {
		return zero, errors.Wrapf(pubsub.ErrInvalidEncoding, "bad magic byte 0x%02x", src[0])
	}
	if src[1] != version {
		return zero, errors.Wrapf(pubsub.ErrInvalidEncoding, "unsupported schema version %d", src[1])
	}

	boxCount := binary.LittleEndian.Uint32(src[22:26])
	need := int(boxCount) * boxWireSize
	if need > len(src)-headerSize {
		return zero, errors.Wrapf(pubsub.ErrInvalidEncoding, "declared box count %d exceeds capacity", boxCount)
	}

	d := Detection{
		FrameNumber: binary.LittleEndian.Uint64(src[2:10]),
		TimestampNs: binary.LittleEndian.Uint64(src[10:18]),
		CameraID:    binary.LittleEndian.Uint32(src[18:22]),
	}
	if boxCount > 0 {
		d.Boxes = make([]BoundingBox, boxCount)
		off := headerSize
		for i := range d.Boxes {
			d.Boxes[i] = BoundingBox{
				X1:         math.Float32frombits(binary.LittleEndian.Uint32(src[off:])),
				Y1:         math.Float32frombits(binary.LittleEndian.Uint32(src[off+4:])),
				X2:         math.Float32frombits(binary.LittleEndian.Uint32(src[off+8:])),
				Y2:         math.Float32frombits(binary.LittleEndian.Uint32(src[off+12:])),
				Confidence: math.Float32frombits(binary.LittleEndian.Uint32(src[off+16:])),
				ClassID:    binary.LittleEndian.Uint32(src[off+20:]),
			}
			off += boxWireSize
		}
	}
	return d, nil
}
