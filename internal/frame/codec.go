package frame

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/edge-sentry/ipcbridge/internal/pubsub"
)

// Wire layout (see SPEC_FULL.md §3):
//
//	offset 0  : magic byte (magicByte)
//	offset 1  : schema version
//	offset 2  : frame_number   (u64 LE)
//	offset 10 : timestamp_ns   (u64 LE)
//	offset 18 : camera_id      (u32 LE)
//	offset 22 : width          (u32 LE)
//	offset 26 : height         (u32 LE)
//	offset 30 : channels       (u8)
//	offset 31 : format         (u8)
//	offset 32 : pixel_len      (u32 LE)
//	offset 36 : pixels         (tail field, pixel_len bytes)
const (
	magicByte  = 0xF2
	version    = 1
	headerSize = 36
)

type codec struct{}

func (codec) Encode(v Frame, dst []byte) (int, error) {
	need := headerSize + len(v.Pixels)
	if need > len(dst) {
		return 0, errors.Wrapf(pubsub.ErrPayloadTooLarge, "frame needs %d bytes, slot payload is %d", need, len(dst))
	}

	dst[0] = magicByte
	dst[1] = version
	binary.LittleEndian.PutUint64(dst[2:], v.FrameNumber)
	binary.LittleEndian.PutUint64(dst[10:], v.TimestampNs)
	binary.LittleEndian.PutUint32(dst[18:], v.CameraID)
	binary.LittleEndian.PutUint32(dst[22:], v.Width)
	binary.LittleEndian.PutUint32(dst[26:], v.Height)
	dst[30] = v.Channels
	dst[31] = byte(v.Format)
	binary.LittleEndian.PutUint32(dst[32:], uint32(len(v.Pixels)))
	copy(dst[headerSize:need], v.Pixels)

	return need, nil
}

func (codec) Verify(src []byte) (Frame, error) {
	var zero Frame

	if len(src) < headerSize {
		return zero, errors.Wrapf(pubsub.ErrInvalidEncoding, "frame payload shorter than header (%d < %d)", len(src), headerSize)
	}
	if src[0] != magicByte {
		return zero, errors.Wrapf(pubsub.ErrInvalidEncoding, "bad magic byte 0x%02x", src[0])
	}
	if src[1] != version {
		return zero, errors.Wrapf(pubsub.ErrInvalidEncoding, "unsupported schema version %d", src[1])
	}

	pixelLen := binary.LittleEndian.Uint32(src[32:36])
	if int(pixelLen) > len(src)-headerSize {
		return zero, errors.Wrapf(pubsub.ErrInvalidEncoding, "declared pixel length %d exceeds capacity %d", pixelLen, len(src)-headerSize)
	}

	format := Format(src[31])
	if format != FormatBGR && format != FormatRGB && format != FormatGRAY {
		return zero, errors.Wrapf(pubsub.ErrInvalidEncoding, "unknown pixel format %d", src[31])
	}

	f := Frame{
		FrameNumber: binary.LittleEndian.Uint64(src[2:10]),
		TimestampNs: binary.LittleEndian.Uint64(src[10:18]),
		CameraID:    binary.LittleEndian.Uint32(src[18:22]),
		Width:       binary.LittleEndian.Uint32(src[22:26]),
		Height:      binary.LittleEndian.Uint32(src[26:30]),
		Channels:    src[30],
		Format:      format,
		Pixels:      src[headerSize : headerSize+int(pixelLen) : headerSize+int(pixelLen)],
	}
	return f, nil
}
