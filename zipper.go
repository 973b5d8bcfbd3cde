package gocork

import "io"

import s "github.com/bnclabs/gosettings"
import "github.com/pkg/errors"

// Zipper interface to compress a blob into one self-delimiting unit and to
// inflate a sequence of such units.
type Zipper interface {
	// Zip compresses in as a single unit.
	Zip(in []byte) ([]byte, error)

	// Unzip inflates every complete unit at the start of in, appending
	// the output to out. Consumed is the number of bytes of in that
	// belong to complete units, a trailing partial unit is left for the
	// caller to retry once more bytes have arrived.
	Unzip(in, out []byte) (data []byte, consumed int, err error)

	// Starts reports whether chunk certainly begins a new unit. A false
	// return says nothing.
	Starts(chunk []byte) bool
}

type fnZipperFactory func(setts s.Settings) (Zipper, error)

var zipperFactory = make(map[string]fnZipperFactory)

// NewZipper creates the zipper configured by settings "zipper".
func NewZipper(setts s.Settings) (Zipper, error) {
	name := setts.String("zipper")
	factory, ok := zipperFactory[name]
	if !ok {
		return nil, errors.Wrapf(ErrorZipperUnknown, "%q", name)
	}
	return factory(setts)
}

// isPartial reports whether err only means that a unit was cut short.
func isPartial(err error) bool {
	return err == io.ErrUnexpectedEOF || err == io.EOF
}
