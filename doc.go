// Package gocork implements the server side buffering layer for a high
// frequency message channel between a server and many sessions.
//
// outbound, application messages are enqueued per session on a
// Compressor. Its worker serializes every queued message of a session as
// a record, frames the records with a length prefix, compresses the
// frame as one blob and hands it to the Transporter in chunks of at most
// 32KB. SetPause corks the compressor so that several enqueues batch
// into a single blob.
//
// inbound, raw chunks received from the transport are queued per session
// on a Decompressor. Its worker inflates them, reassembles a continuous
// byte stream per session and extracts length prefixed frames into a
// dispatch queue. Frames reach the Dispatcher only from TickEnd, that
// the host shall call once per tick.
//
// wire format:
//
//		record : | id uint16 | debugid uint32 | payload |
//		frame  : | length uint32 | record | record | ... |
//		blob   : gzip (or zlib) of a single frame
//		chunk  : consecutive <= 32KB slices of a blob
//
// All integers are big-endian. If a chunk never reaches the peer, a gzip
// peer drops the rest of that blob when the first chunk of the next blob
// arrives. Otherwise the session is reset once its pending compressed
// bytes exceed "zipped.limit".
//
// pipeline instantiation steps:
//
//		setts := gocork.DefaultSettings()
//		log.SetLogger(nil, setts)
//		p, err := gocork.NewPipeline("game", transport, dispatcher, setts)
//		p.SetPause(true)                  // cork, optional
//		p.Enqueue(session, msg)
//		p.SetPause(false)                 // flush
//		p.Receive(session, chunk)         // from transport
//		p.TickEnd()                       // from host tick loop
//		p.Clear(session)                  // on disconnect
package gocork
