package model

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"io"
	"os"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// SaveModel gob-encodes model into filename and returns the sha256 of the written bytes.
//
//	sum, err := model.SaveModel(pipe, filepath.Join(dir, "model.gob"))
func SaveModel(model interface{}, filename string) (string, error) {
	file, err := os.Create(filename)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", filename)
	}
	defer file.Close()

	h := sha256.New()
	w := bufio.NewWriter(io.MultiWriter(file, h))
	if err := SaveModelToWriter(model, w); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", errors.Wrapf(err, "write %s", filename)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// LoadModel decodes filename into model, which must be a pointer. When wantSum is
// non-empty the file's sha256 must match it.
func LoadModel(model interface{}, filename, wantSum string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "read %s", filename)
	}
	if wantSum != "" {
		sum := sha256.Sum256(data)
		if got := hex.EncodeToString(sum[:]); got != wantSum {
			return errors.NewModelError("model.LoadModel", "checksum mismatch",
				errors.Newf("%s has sha256 %s, manifest says %s", filename, got, wantSum))
		}
	}
	return LoadModelFromReader(model, bytes.NewReader(data))
}

// SaveModelToWriter gob-encodes model into w.
func SaveModelToWriter(model interface{}, w io.Writer) error {
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(model); err != nil {
		return errors.Wrap(err, "encode model")
	}
	return nil
}

// LoadModelFromReader gob-decodes a model from r.
func LoadModelFromReader(model interface{}, r io.Reader) error {
	decoder := gob.NewDecoder(r)
	if err := decoder.Decode(model); err != nil {
		return errors.Wrap(err, "decode model")
	}
	return nil
}
