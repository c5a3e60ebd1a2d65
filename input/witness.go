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

// Witness is the witness of one party. The shares are ordered by
// signal index and cover all signals. Public holds the plaintext
// values of the leading public signals: the constant one, the outputs,
// and the public inputs of the main template.
type Witness struct {
	Public []field.Element
	Shares []rep3.Share
}

type witnessFile struct {
	Prime  string   `cbor:"1,keyasint"`
	Public [][]byte `cbor:"2,keyasint,omitempty"`
	Shares [][]byte `cbor:"3,keyasint,omitempty"`
}

// SplitWitness splits a plaintext witness into the witnesses of the
// three parties. The first numPublic values are public.
func SplitWitness(f *field.Field, values []field.Element, numPublic int,
	rand io.Reader) ([rep3.NumParties]*Witness, error) {

	var result [rep3.NumParties]*Witness
	if numPublic < 0 || numPublic > len(values) {
		return result, errors.Newf("invalid number of public values %d",
			numPublic)
	}
	for i := range result {
		result[i] = &Witness{
			Public: append([]field.Element(nil), values[:numPublic]...),
			Shares: make([]rep3.Share, len(values)),
		}
	}
	for idx, v := range values {
		shares, err := rep3.Split(f, v, rand)
		if err != nil {
			return result, err
		}
		for i, w := range result {
			w.Shares[idx] = shares[i]
		}
	}
	return result, nil
}

// ReconstructWitness reconstructs the plaintext witness from the
// witnesses of the three parties.
func ReconstructWitness(f *field.Field, parts [rep3.NumParties]*Witness) (
	[]field.Element, error) {

	n := len(parts[0].Shares)
	for i, w := range parts {
		if len(w.Shares) != n {
			return nil, errors.Newf("party %d: %d shares, expected %d",
				i, len(w.Shares), n)
		}
	}
	result := make([]field.Element, n)
	for idx := range result {
		var shares [rep3.NumParties]rep3.Share
		for i, w := range parts {
			shares[i] = w.Shares[idx]
		}
		v, err := rep3.Reconstruct(f, shares)
		if err != nil {
			return nil, errors.Wrapf(err, "signal %d", idx)
		}
		result[idx] = v
	}
	return result, nil
}

// Marshal writes the witness in CBOR.
func (w *Witness) Marshal(out io.Writer, f *field.Field) error {
	return cbor.NewEncoder(out).Encode(&witnessFile{
		Prime:  f.Name(),
		Public: encodeElements(f, w.Public),
		Shares: encodeShares(f, w.Shares),
	})
}

// UnmarshalWitness reads a CBOR encoded witness.
func UnmarshalWitness(r io.Reader, f *field.Field) (*Witness, error) {
	var file witnessFile
	if err := cbor.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "decoding witness")
	}
	if err := checkPrime(f, file.Prime); err != nil {
		return nil, err
	}
	public, err := decodeElements(f, file.Public)
	if err != nil {
		return nil, err
	}
	shares, err := decodeShares(f, file.Shares)
	if err != nil {
		return nil, err
	}
	if len(public) > len(shares) {
		return nil, errors.Newf("%d public values, %d signals",
			len(public), len(shares))
	}
	return &Witness{
		Public: public,
		Shares: shares,
	}, nil
}

// Save writes the witness file.
func (w *Witness) Save(file string, f *field.Field) error {
	fp, err := os.Create(file)
	if err != nil {
		return err
	}
	if err := w.Marshal(fp, f); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

// LoadWitness reads the witness file.
func LoadWitness(file string, f *field.Field) (*Witness, error) {
	fp, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	w, err := UnmarshalWitness(fp, f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", file)
	}
	return w, nil
}
