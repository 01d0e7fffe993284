package serialization

import (
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	stderrors "errors"
	"io"
	"reflect"

	"github.com/golang/snappy"
	"gopkg.in/yaml.v2"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
)

// Decoder is an interface that matches gob.Decoder, json.Decoder, and yaml.Decoder
type Decoder interface {
	Decode(interface{}) error
}

// ErrStop is a special value returned from handlers to cease processing
var ErrStop = stderrors.New("stop processing requested")

func decodeWith(d Decoder, elemType reflect.Type, handler func(interface{}) error) error {
	for {
		elem := reflect.New(elemType).Interface()
		err := d.Decode(elem)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		err = handler(elem)
		if err == ErrStop {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Decode loads objects from a file. If the path ends with .gz or .snappy the
// contents are decompressed first; the remaining extension picks the encoding.
// The handler is either a pointer, which receives the first object, or a
// function taking a pointer, which is called for every object in the stream.
//
//   var runs []Run
//   err := serialization.Decode("runs.json.gz", func(r *Run) {
//     runs = append(runs, *r)
//   })
func Decode(path string, handler interface{}) error {
	r, err := fileutil.NewReader(path)
	if err != nil {
		return errors.Wrapf(err, "error loading %s", path)
	}
	defer r.Close()
	return decodeAs(r, path, handler)
}

func decodeAs(r io.Reader, path string, handler interface{}) error {
	inpath := path
	compression, path := splitCompression(path)
	switch compression {
	case ".gz":
		rd, err := gzip.NewReader(r)
		if err != nil {
			return errors.WrapKind(errors.DataIntegrity, err, "error loading %s", inpath)
		}
		defer rd.Close()
		r = rd
	case ".snappy":
		r = snappy.NewReader(r)
	}

	var d Decoder
	switch encodingOf(path) {
	case ".json":
		d = json.NewDecoder(r)
	case ".gob":
		d = gob.NewDecoder(r)
	case ".yaml":
		d = yaml.NewDecoder(r)
	default:
		return errors.Kindf(errors.Configuration, "could not find decoder for %s", inpath)
	}

	f := reflect.ValueOf(handler)
	if f.Kind() == reflect.Ptr {
		if err := d.Decode(handler); err != nil {
			return errors.WrapKind(errors.DataIntegrity, err, "error decoding %s", inpath)
		}
		return nil
	}
	if f.Kind() != reflect.Func {
		panic("expected a function or a pointer as last parameter")
	}

	funcType := f.Type()
	if funcType.NumIn() != 1 {
		panic("expected a function with one input parameter")
	}
	if funcType.NumOut() > 1 {
		panic("expected a function with zero or one output parameter")
	}
	ptrType := funcType.In(0)
	if ptrType.Kind() != reflect.Ptr {
		panic("expected function parameter to be a pointer")
	}

	err := decodeWith(d, ptrType.Elem(), func(x interface{}) error {
		ret := f.Call([]reflect.Value{reflect.ValueOf(x)})
		if len(ret) == 0 || ret[0].IsNil() {
			return nil
		}
		return ret[0].Interface().(error)
	})
	if err != nil {
		return errors.Wrapf(err, "error decoding %s", inpath)
	}
	return nil
}
