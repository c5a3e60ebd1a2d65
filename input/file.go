//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package input

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/fxamacker/cbor/v2"
	"github.com/markkurossi/covm/field"
	"github.com/markkurossi/covm/rep3"
)

// sharedFile is the file format of the shared inputs. Field elements
// use their canonical encoding and shares are encoded as component
// pairs.
type sharedFile struct {
	Prime  string              `cbor:"1,keyasint"`
	Public map[string][][]byte `cbor:"2,keyasint,omitempty"`
	Shared map[string][][]byte `cbor:"3,keyasint,omitempty"`
}

func encodeElements(f *field.Field, vals []field.Element) [][]byte {
	result := make([][]byte, len(vals))
	for i, v := range vals {
		result[i] = f.Bytes(v)
	}
	return result
}

func decodeElements(f *field.Field, data [][]byte) ([]field.Element, error) {
	result := make([]field.Element, len(data))
	for i, d := range data {
		v, err := f.FromBytes(d)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

func encodeShares(f *field.Field, shares []rep3.Share) [][]byte {
	result := make([][]byte, len(shares))
	for i, s := range shares {
		result[i] = append(f.Bytes(s.A), f.Bytes(s.B)...)
	}
	return result
}

func decodeShares(f *field.Field, data [][]byte) ([]rep3.Share, error) {
	n := f.ByteLen()
	result := make([]rep3.Share, len(data))
	for i, d := range data {
		if len(d) != 2*n {
			return nil, errors.Mark(
				errors.Newf("invalid share length %d", len(d)),
				field.ErrInvalidElement)
		}
		a, err := f.FromBytes(d[:n])
		if err != nil {
			return nil, err
		}
		b, err := f.FromBytes(d[n:])
		if err != nil {
			return nil, err
		}
		result[i] = rep3.Share{
			A: a,
			B: b,
		}
	}
	return result, nil
}

func checkPrime(f *field.Field, prime string) error {
	if prime != f.Name() {
		return errors.Newf("field mismatch: file %s, expected %s",
			prime, f.Name())
	}
	return nil
}

// Marshal writes the shared input in CBOR.
func (s *Shared) Marshal(w io.Writer, f *field.Field) error {
	file := &sharedFile{
		Prime:  f.Name(),
		Public: make(map[string][][]byte),
		Shared: make(map[string][][]byte),
	}
	for name, v := range s.Public {
		file.Public[name] = encodeElements(f, v)
	}
	for name, v := range s.Shared {
		file.Shared[name] = encodeShares(f, v)
	}
	return cbor.NewEncoder(w).Encode(file)
}

// Unmarshal reads a CBOR encoded shared input.
func Unmarshal(r io.Reader, f *field.Field) (*Shared, error) {
	var file sharedFile
	if err := cbor.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "decoding shared input")
	}
	if err := checkPrime(f, file.Prime); err != nil {
		return nil, err
	}
	result := NewShared()
	for name, data := range file.Public {
		v, err := decodeElements(f, data)
		if err != nil {
			return nil, errors.Wrapf(err, "input %s", name)
		}
		result.Public[name] = v
	}
	for name, data := range file.Shared {
		if _, ok := result.Public[name]; ok {
			return nil, errors.Newf("input %s defined multiple times", name)
		}
		v, err := decodeShares(f, data)
		if err != nil {
			return nil, errors.Wrapf(err, "input %s", name)
		}
		result.Shared[name] = v
	}
	return result, nil
}

// Load reads the shared input file.
func Load(file string, f *field.Field) (*Shared, error) {
	fp, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	s, err := Unmarshal(fp, f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", file)
	}
	return s, nil
}

// Save writes the shared input file.
func (s *Shared) Save(file string, f *field.Field) error {
	fp, err := os.Create(file)
	if err != nil {
		return err
	}
	if err := s.Marshal(fp, f); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}
