package gocork

import "github.com/pkg/errors"

// ErrorSerializationFault is raised when a message is mutated while it is
// being encoded. It is a caller bug and never retried.
var ErrorSerializationFault = errors.New("gocork.serializationFault")

// ErrorCompressionFault is raised on corrupt compressed input.
var ErrorCompressionFault = errors.New("gocork.compressionFault")

// ErrorTransportFault wraps failures reported by Transporter.Send.
var ErrorTransportFault = errors.New("gocork.transportFault")

// ErrorDispatchFault wraps failures reported by Dispatcher.OnFrame.
var ErrorDispatchFault = errors.New("gocork.dispatchFault")

// ErrorClosed is returned by producer calls after Close.
var ErrorClosed = errors.New("gocork.closed")

// ErrorZipperUnknown for unknown compression.
var ErrorZipperUnknown = errors.New("gocork.zipperUnknown")

// ErrorChunksize for a configured chunksize outside 1..MaxChunksize.
var ErrorChunksize = errors.New("gocork.chunksize")

// MaxChunksize is the upper bound on a single Transporter.Send.
const MaxChunksize = 32 * 1024

const (
	recordHeaderSize = 6 // uint16 id + uint32 debug id
	framePrefixSize  = 4 // uint32 length
)
