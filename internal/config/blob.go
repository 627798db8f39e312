package config

import "encoding/binary"

// PersistSig is the persistence format signature, bumped on incompatible
// layout changes (derived from the firmware version that introduced it).
const PersistSig = 2411

// BlobSize is the encoded image size in bytes.
const BlobSize = 2 + 1 + 4 + 1 + EventCount*4 + 4

// Encode packs the configuration into its persistence image.
func Encode(c Config) []byte {
	buf := make([]byte, BlobSize)
	binary.LittleEndian.PutUint16(buf[0:], PersistSig)
	buf[2] = byte(c.Mode)
	binary.LittleEndian.PutUint32(buf[3:], c.MaxAmps)
	if c.EnableDST {
		buf[7] = 1
	}
	off := 8
	for _, e := range c.Events {
		buf[off] = e.Hour
		buf[off+1] = e.Minute
		buf[off+2] = e.DowMask
		buf[off+3] = byte(e.Kind)
		off += 4
	}
	buf[off] = byte(c.Calib.AmmA)
	buf[off+1] = byte(c.Calib.AmmB)
	buf[off+2] = byte(c.Calib.PilotA)
	buf[off+3] = byte(c.Calib.PilotB)
	return buf
}

// Decode unpacks a persistence image. A short blob or a signature mismatch
// yields the default configuration; everything else is validated so that a
// corrupt field resets alone rather than discarding the whole image.
func Decode(data []byte) Config {
	if len(data) < BlobSize || binary.LittleEndian.Uint16(data[0:]) != PersistSig {
		return Default()
	}
	var c Config
	c.Mode = Mode(data[2])
	c.MaxAmps = binary.LittleEndian.Uint32(data[3:])
	c.EnableDST = data[7] != 0
	off := 8
	for i := range c.Events {
		c.Events[i] = Event{
			Hour:    data[off],
			Minute:  data[off+1],
			DowMask: data[off+2],
			Kind:    EventKind(data[off+3]),
		}
		off += 4
	}
	c.Calib = Calib{
		AmmA:   int8(data[off]),
		AmmB:   int8(data[off+1]),
		PilotA: int8(data[off+2]),
		PilotB: int8(data[off+3]),
	}
	c.Validate()
	return c
}
