package gocork

import "compress/flate"

import s "github.com/bnclabs/gosettings"
import "github.com/pkg/errors"

// DefaultSettings for a Pipeline.
//
// "chunksize" (uint64, default: 32768)
//		maximum number of bytes handed to a single Transporter.Send,
//		shall be within 1..32768.
//
// "zipper" (string, default: "gzip")
//		compression used for outbound blobs and inbound chunks, either
//		"gzip" or "zlib".
//
// "zipper.level" (int64, default: flate.BestSpeed)
//		compression level passed to the zipper.
//
// "zipped.limit" (uint64, default: 64MB)
//		maximum number of compressed bytes a session may hold while
//		waiting for a unit to complete, beyond that the session's
//		inbound state is reset.
//
// "log.level" (string, default: "info")
//		log level, used by the example command to configure golog.
//
// "log.file" (string, default: "")
//		log file, empty string logs to stdout.
func DefaultSettings() s.Settings {
	return s.Settings{
		"chunksize":    uint64(MaxChunksize),
		"zipper":       "gzip",
		"zipper.level": int64(flate.BestSpeed),
		"zipped.limit": uint64(64 * 1024 * 1024),
		"log.level":    "info",
		"log.file":     "",
	}
}

func chunksize(setts s.Settings) (int, error) {
	size := setts.Uint64("chunksize")
	if size == 0 || size > MaxChunksize {
		return 0, errors.Wrapf(ErrorChunksize, "%v", size)
	}
	return int(size), nil
}
