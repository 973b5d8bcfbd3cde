//  Copyright (c) 2014 Couchbase, Inc.

package gocork

import "compress/gzip"
import "bytes"
import "io/ioutil"

import s "github.com/bnclabs/gosettings"
import "github.com/pkg/errors"

// GzipCompression zips each blob as one gzip member.
type GzipCompression struct {
	level   int
	reader  *gzip.Reader
	writer  *gzip.Writer
	wbuffer bytes.Buffer
}

// NewGzipCompression returns a new instance of gzip-compression.
func NewGzipCompression(level int) (*GzipCompression, error) {
	w, err := gzip.NewWriterLevel(nil, level)
	if err != nil {
		return nil, err
	}
	return &GzipCompression{level: level, writer: w}, nil
}

// Zip implements Zipper{} interface.
func (gz *GzipCompression) Zip(in []byte) ([]byte, error) {
	gz.wbuffer.Reset()
	gz.writer.Reset(&gz.wbuffer)
	if _, err := gz.writer.Write(in); err != nil {
		return nil, err
	} else if err := gz.writer.Close(); err != nil {
		return nil, err
	}
	out := make([]byte, gz.wbuffer.Len())
	copy(out, gz.wbuffer.Bytes())
	return out, nil
}

// Unzip implements Zipper{} interface.
func (gz *GzipCompression) Unzip(in, out []byte) ([]byte, int, error) {
	rd := bytes.NewReader(in)
	consumed := 0
	for rd.Len() > 0 {
		var err error
		if gz.reader == nil {
			gz.reader, err = gzip.NewReader(rd)
		} else {
			err = gz.reader.Reset(rd)
		}
		if isPartial(err) {
			break
		} else if err != nil {
			return out, consumed, errors.Wrap(ErrorCompressionFault, err.Error())
		}
		gz.reader.Multistream(false)
		data, err := ioutil.ReadAll(gz.reader)
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

// member header as written by gzip.Writer with a zero Header, XFL at
// offset 8 depends on the level and is not compared.
var gzipHeader = []byte{0x1f, 0x8b, 8, 0, 0, 0, 0, 0}

const gzipOSUnknown = 0xff

// Starts implements Zipper{} interface.
func (gz *GzipCompression) Starts(chunk []byte) bool {
	if len(chunk) < 10 {
		return false
	}
	return bytes.HasPrefix(chunk, gzipHeader) && chunk[9] == gzipOSUnknown
}

func makeGzip(setts s.Settings) (Zipper, error) {
	return NewGzipCompression(int(setts.Int64("zipper.level")))
}

func init() {
	zipperFactory["gzip"] = makeGzip
}
