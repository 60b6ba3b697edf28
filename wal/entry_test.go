package wal

import (
	"bytes"
	"errors"
	"testing"

	"github.com/saturnkv/saturnkv/types"
)

func TestEncodeDecodePutRoundTrip(t *testing.T) {
	e := types.NewPut([]byte("k"), []byte("v"))

	decoded, err := DecodeEntry(EncodeEntry(e))
	if err != nil {
		t.Fatal(err)
	}

	if decoded.Op != e.Op || !bytes.Equal(decoded.Key, e.Key) || !bytes.Equal(decoded.Value, e.Value) {
		t.Errorf("decoded = %+v, want %+v", decoded, e)
	}
}

func TestEncodeDecodeDeleteRoundTrip(t *testing.T) {
	e := types.NewDelete([]byte("key"))

	decoded, err := DecodeEntry(EncodeEntry(e))
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Op != types.OpDelete || string(decoded.Key) != "key" || len(decoded.Value) != 0 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestEncodeDecodeEmptyKeyAndValue(t *testing.T) {
	e := types.NewPut(nil, nil)
	decoded, err := DecodeEntry(EncodeEntry(e))
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Key) != 0 || len(decoded.Value) != 0 {
		t.Errorf("decoded = %+v, want empty key/value", decoded)
	}
}

func TestDecodeEntryEmptyRecord(t *testing.T) {
	_, err := DecodeEntry(nil)
	if !errors.Is(err, ErrEmptyRecord) {
		t.Errorf("err = %v, want ErrEmptyRecord", err)
	}
}

func TestDecodeEntryUnknownTag(t *testing.T) {
	_, err := DecodeEntry([]byte{0xFF, 0, 0, 0, 0})
	if !errors.Is(err, ErrUnknownTag) {
		t.Errorf("err = %v, want ErrUnknownTag", err)
	}
}

func TestDecodeEntryTruncatedLength(t *testing.T) {
	_, err := DecodeEntry([]byte{putTag, 0, 0})
	if !errors.Is(err, ErrTruncatedLength) {
		t.Errorf("err = %v, want ErrTruncatedLength", err)
	}
}

func TestDecodeEntryTruncatedPayload(t *testing.T) {
	_, err := DecodeEntry([]byte{putTag, 0, 0, 0, 5, 'a', 'b'})
	if !errors.Is(err, ErrTruncatedPayload) {
		t.Errorf("err = %v, want ErrTruncatedPayload", err)
	}
}
