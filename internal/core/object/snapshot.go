package object

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/edirooss/selva-engine/internal/env"
)

// Logger is the minimal logging hook snapshot I/O needs: a place to report
// skipped array payloads and unreadable keys without failing the whole
// load — logic errors are logged and the affected key is skipped so the
// rest of the snapshot stays loadable.
type Logger interface {
	Warnf(format string, args ...any)
}

type discardLogger struct{}

func (discardLogger) Warnf(string, ...any) {}

// Save writes the versioned snapshot format: a format-version header
// followed by the recursive object encoding (obj_size, then per key: name,
// type tag, type-specific payload). Array-typed keys are skipped with a
// warning; everything else round-trips.
func Save(w io.Writer, o *Object, log Logger) error {
	if log == nil {
		log = discardLogger{}
	}
	if err := writeUint32(w, env.SnapshotFormatVersion); err != nil {
		return err
	}
	return saveObject(w, o, log)
}

// Load reads a versioned snapshot. A format-version mismatch returns
// (nil, nil): a null object, not an error — the host logs and skips it,
// same as an unreadable key.
func Load(r io.Reader, log Logger) (*Object, error) {
	if log == nil {
		log = discardLogger{}
	}
	version, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if version != env.SnapshotFormatVersion {
		log.Warnf("object snapshot: version mismatch (got %d, want %d)", version, env.SnapshotFormatVersion)
		return nil, nil
	}
	return loadObject(r, log)
}

func saveObject(w io.Writer, o *Object, log Logger) error {
	keys := o.Keys()
	persisted := 0
	for _, name := range keys {
		if k := o.values[name].kind; k != KindArray && k != KindNull {
			persisted++
		}
	}
	if err := writeUint32(w, uint32(persisted)); err != nil {
		return err
	}
	for _, name := range keys {
		v := o.values[name]
		if v.kind == KindArray {
			log.Warnf("object snapshot: array payload for key %q not persisted (unsupported)", name)
			continue
		}
		if v.kind == KindNull {
			continue
		}
		if err := writeString(w, name); err != nil {
			return err
		}
		if err := writeByte(w, byte(v.kind)); err != nil {
			return err
		}
		if err := savePayload(w, v, log); err != nil {
			return err
		}
	}
	return nil
}

func savePayload(w io.Writer, v *value, log Logger) error {
	switch v.kind {
	case KindDouble:
		return writeUint64(w, math.Float64bits(v.d))
	case KindLong:
		return writeVarint(w, v.l)
	case KindString:
		return writeString(w, v.s)
	case KindObject:
		return saveObject(w, v.obj, log)
	case KindSet:
		if err := writeUint32(w, uint32(len(v.set))); err != nil {
			return err
		}
		for _, s := range v.set {
			if err := writeString(w, s); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("object snapshot: unsupported kind %v", v.kind)
	}
}

func loadObject(r io.Reader, log Logger) (*Object, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	o := New()
	for i := uint32(0); i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		kindByte, err := readByte(r)
		if err != nil {
			return nil, err
		}
		kind := Kind(kindByte)

		v, err := loadPayload(r, kind, log)
		if err != nil {
			return nil, err
		}
		if v == nil {
			// array or otherwise unreconstructable: already logged, skip.
			continue
		}
		if err := o.setValue(name, v); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func loadPayload(r io.Reader, kind Kind, log Logger) (*value, error) {
	switch kind {
	case KindDouble:
		bits, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		return &value{kind: KindDouble, d: math.Float64frombits(bits)}, nil
	case KindLong:
		l, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		return &value{kind: KindLong, l: l}, nil
	case KindString:
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		return &value{kind: KindString, s: s}, nil
	case KindObject:
		obj, err := loadObject(r, log)
		if err != nil {
			return nil, err
		}
		return &value{kind: KindObject, obj: obj}, nil
	case KindSet:
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		set := make([]string, 0, n)
		for i := uint32(0); i < n; i++ {
			s, err := readString(r)
			if err != nil {
				return nil, err
			}
			set = append(set, s)
		}
		return &value{kind: KindSet, set: set}, nil
	case KindArray:
		log.Warnf("object snapshot: array payload cannot be reloaded (unsupported), skipping key")
		return nil, nil
	default:
		log.Warnf("object snapshot: unknown type tag %d, skipping key", kind)
		return nil, nil
	}
}

// --- wire primitives ---

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func writeVarint(w io.Writer, v int64) error {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutVarint(b[:], v)
	_, err := w.Write(b[:n])
	return err
}

func readVarint(r io.Reader) (int64, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReaderAdapter{r: r}
	}
	return binary.ReadVarint(br)
}

type byteReaderAdapter struct{ r io.Reader }

func (a *byteReaderAdapter) ReadByte() (byte, error) {
	return readByte(a.r)
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
