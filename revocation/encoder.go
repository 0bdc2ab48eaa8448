package revocation

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const recordFormatVersion = 1

// recordBlob is the Redis value layout. Integer keys keep blobs small and let
// fields be added without renaming.
type recordBlob struct {
	Version   uint8  `cbor:"1,keyasint"`
	TokenID   string `cbor:"2,keyasint"`
	RawToken  string `cbor:"3,keyasint,omitempty"`
	ExpiresAt int64  `cbor:"4,keyasint"`
	RevokedAt int64  `cbor:"5,keyasint,omitempty"`
	Reason    string `cbor:"6,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("revocation: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("revocation: CBOR decoder initialization failed: " + err.Error())
	}
}

// encodeRecord serializes rec with millisecond timestamps.
func encodeRecord(rec Record) ([]byte, error) {
	blob := recordBlob{
		Version:   recordFormatVersion,
		TokenID:   rec.TokenID,
		RawToken:  rec.RawToken,
		ExpiresAt: rec.ExpiresAt.UnixMilli(),
		Reason:    string(rec.Reason),
	}
	if !rec.RevokedAt.IsZero() {
		blob.RevokedAt = rec.RevokedAt.UnixMilli()
	}
	return encMode.Marshal(blob)
}

func decodeRecord(data []byte) (Record, error) {
	var blob recordBlob
	if err := decMode.Unmarshal(data, &blob); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if blob.Version != recordFormatVersion {
		return Record{}, fmt.Errorf("%w: unsupported version %d", ErrCorruptRecord, blob.Version)
	}
	if blob.TokenID == "" {
		return Record{}, errors.Join(ErrCorruptRecord, errors.New("missing token id"))
	}
	rec := Record{
		TokenID:   blob.TokenID,
		RawToken:  blob.RawToken,
		ExpiresAt: time.UnixMilli(blob.ExpiresAt),
		Reason:    Reason(blob.Reason),
	}
	if blob.RevokedAt != 0 {
		rec.RevokedAt = time.UnixMilli(blob.RevokedAt)
	}
	return rec, nil
}
