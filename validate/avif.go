package validate

import (
	"encoding/binary"
	"errors"
	"image"
	"io"
)

// AVIF files are ISO-BMFF containers. Only the header is parsed: the primary
// item's dimensions live in meta/iprp/ipco/ispe.
func init() {
	image.RegisterFormat("avif", "????ftypavif", decodeAVIF, decodeAVIFConfig)
	image.RegisterFormat("avif", "????ftypavis", decodeAVIF, decodeAVIFConfig)
}

const avifHeaderLimit = 1 << 20

var errAVIFNoDimensions = errors.New("avif: no ispe box found")

func decodeAVIF(io.Reader) (image.Image, error) {
	return nil, errors.New("avif: pixel decoding not supported")
}

func decodeAVIFConfig(r io.Reader) (image.Config, error) {
	data, err := io.ReadAll(io.LimitReader(r, avifHeaderLimit))
	if err != nil {
		return image.Config{}, err
	}
	meta, ok := findBox(data, "meta")
	if !ok || len(meta) < 4 {
		return image.Config{}, errAVIFNoDimensions
	}
	// meta is a full box: skip version and flags.
	iprp, ok := findBox(meta[4:], "iprp")
	if !ok {
		return image.Config{}, errAVIFNoDimensions
	}
	ipco, ok := findBox(iprp, "ipco")
	if !ok {
		return image.Config{}, errAVIFNoDimensions
	}
	ispe, ok := findBox(ipco, "ispe")
	if !ok || len(ispe) < 12 {
		return image.Config{}, errAVIFNoDimensions
	}
	w := binary.BigEndian.Uint32(ispe[4:8])
	h := binary.BigEndian.Uint32(ispe[8:12])
	if w == 0 || h == 0 {
		return image.Config{}, errAVIFNoDimensions
	}
	return image.Config{Width: int(w), Height: int(h)}, nil
}

// findBox returns the payload of the first box of type typ among the sibling
// boxes in data.
func findBox(data []byte, typ string) ([]byte, bool) {
	for len(data) >= 8 {
		size := uint64(binary.BigEndian.Uint32(data[0:4]))
		kind := string(data[4:8])
		header := uint64(8)
		switch size {
		case 0:
			size = uint64(len(data))
		case 1:
			if len(data) < 16 {
				return nil, false
			}
			size = binary.BigEndian.Uint64(data[8:16])
			header = 16
		}
		if size < header || size > uint64(len(data)) {
			return nil, false
		}
		if kind == typ {
			return data[header:size], true
		}
		data = data[size:]
	}
	return nil, false
}
