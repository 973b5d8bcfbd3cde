package gocork

import "compress/zlib"
import "bytes"
import "io"
import "io/ioutil"

import s "github.com/bnclabs/gosettings"
import "github.com/pkg/errors"

// ZlibCompression zips each blob as one zlib stream.
type ZlibCompression struct {
	writer  *zlib.Writer
	wbuffer bytes.Buffer
}

// NewZlibCompression returns a new instance of zlib-compression.
func NewZlibCompression(level int) (*ZlibCompression, error) {
	w, err := zlib.NewWriterLevel(nil, level)
	if err != nil {
		return nil, err
	}
	return &ZlibCompression{writer: w}, nil
}

// Zip implements Zipper{} interface.
func (z *ZlibCompression) Zip(in []byte) ([]byte, error) {
	z.wbuffer.Reset()
	z.writer.Reset(&z.wbuffer)
	if _, err := z.writer.Write(in); err != nil {
		return nil, err
	} else if err := z.writer.Close(); err != nil {
		return nil, err
	}
	out := make([]byte, z.wbuffer.Len())
	copy(out, z.wbuffer.Bytes())
	return out, nil
}

// Unzip implements Zipper{} interface.
func (z *ZlibCompression) Unzip(in, out []byte) ([]byte, int, error) {
	rd := bytes.NewReader(in)
	consumed := 0
	for rd.Len() > 0 {
		reader, err := zlib.NewReader(rd)
		if isPartial(err) {
			break
		} else if err != nil {
			return out, consumed, errors.Wrap(ErrorCompressionFault, err.Error())
		}
		data, err := readStream(reader)
		if isPartial(err) {
			break
		} else if err != nil {
			return out, consumed, errors.Wrap(ErrorCompressionFault, err.Error())
		}
		out = append(out, data...)
		consumed = len(in) - rd.Len()
	}
	return out, consumed, nil
}

// Starts implements Zipper{} interface. The two byte zlib header shows up
// inside deflate data too often to be trusted, so it never claims a start.
func (z *ZlibCompression) Starts(chunk []byte) bool {
	return false
}

func readStream(reader io.ReadCloser) ([]byte, error) {
	data, err := ioutil.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	return data, reader.Close()
}

func makeZlib(setts s.Settings) (Zipper, error) {
	return NewZlibCompression(int(setts.Int64("zipper.level")))
}

func init() {
	zipperFactory["zlib"] = makeZlib
}
