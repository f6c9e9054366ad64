package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"catalogdb/pkg/common"
)

const (
	MagicNumber = 0x43

	OpFind  = 0x01 // Key=course id
	OpList  = 0x02
	OpLoad  = 0x03 // Key=path, empty for the configured source
	OpStats = 0x04

	RespOK  = 0x00
	RespErr = 0xFF
	RespVal = 0x01

	// MaxValueSize bounds a single frame's value so a corrupt length cannot
	// trigger a huge allocation.
	MaxValueSize = 64 << 20
)

var (
	ErrInvalidMagic  = errors.New("invalid magic number")
	ErrFrameTooLarge = errors.New("frame too large")
)

// MsgNotFound is the RespErr payload for a lookup that matched nothing.
const MsgNotFound = "Not Found"

type Packet struct {
	Op    byte
	Key   []byte
	Value []byte
}

func Encode(w io.Writer, op byte, key []byte, value []byte) error {
	if len(key) > math.MaxUint16 || len(value) > MaxValueSize {
		return ErrFrameTooLarge
	}
	header := make([]byte, 8)
	header[0] = MagicNumber
	header[1] = op
	binary.BigEndian.PutUint16(header[2:4], uint16(len(key)))
	binary.BigEndian.PutUint32(header[4:8], uint32(len(value)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(key) > 0 {
		if _, err := w.Write(key); err != nil {
			return err
		}
	}
	if len(value) > 0 {
		if _, err := w.Write(value); err != nil {
			return err
		}
	}
	return nil
}

func Decode(r io.Reader) (*Packet, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	if header[0] != MagicNumber {
		return nil, ErrInvalidMagic
	}

	op := header[1]
	kLen := binary.BigEndian.Uint16(header[2:4])
	vLen := binary.BigEndian.Uint32(header[4:8])
	if vLen > MaxValueSize {
		return nil, ErrFrameTooLarge
	}

	key := make([]byte, kLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}

	val := make([]byte, vLen)
	if _, err := io.ReadFull(r, val); err != nil {
		return nil, err
	}

	return &Packet{Op: op, Key: key, Value: val}, nil
}

// EncodeRecords lays out a batch as
// [Count 4B] + ( [ID] [Title] [PrereqCount 2B] [Prereq]* ) * Count
// where every string is [Len 2B] + bytes.
func EncodeRecords(records []common.Record) ([]byte, error) {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(len(records)))

	for _, r := range records {
		if err := writeString(buf, r.ID); err != nil {
			return nil, err
		}
		if err := writeString(buf, r.Title); err != nil {
			return nil, err
		}
		if len(r.Prerequisites) > math.MaxUint16 {
			return nil, fmt.Errorf("%s: too many prerequisites", r.ID)
		}
		binary.Write(buf, binary.BigEndian, uint16(len(r.Prerequisites)))
		for _, p := range r.Prerequisites {
			if err := writeString(buf, p); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

func DecodeRecords(data []byte) ([]common.Record, error) {
	buf := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(buf, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	// every record needs at least 6 bytes
	if int64(count)*6 > int64(buf.Len()) {
		return nil, fmt.Errorf("record count %d exceeds payload", count)
	}

	records := make([]common.Record, count)
	for i := range records {
		var err error
		if records[i].ID, err = readString(buf); err != nil {
			return nil, err
		}
		if records[i].Title, err = readString(buf); err != nil {
			return nil, err
		}
		var n uint16
		if err := binary.Read(buf, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		for j := 0; j < int(n); j++ {
			p, err := readString(buf)
			if err != nil {
				return nil, err
			}
			records[i].Prerequisites = append(records[i].Prerequisites, p)
		}
	}
	return records, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string of %d bytes too long", len(s))
	}
	binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
