// Package http mounts gocork statistics on net/http.DefaultServeMux.
//
//   import _ "github.com/bnclabs/gocork/http"
//
// will automatically mount,
//
//   /gocork/statistics?name=<pipeline-name>
//   /gocork/statistics?keys=n_chunks,n_frames
//
// * if `name` query-parameter is supplied, complete set of statistics
// for the specified <pipeline-name> will be returned as JSON text.
//
// * if `name` query-parameter is skipped, endpoint returns aggregate
// statistics of all live pipelines.
//
// * if `keys` query-parameter is supplied, as comma separated values of
// count-name, only specified list of count values will be returned.
package http

import "net/http"

import "github.com/bnclabs/gocork"

// Path at which statistics are mounted.
const Path = "/gocork/statistics"

func init() {
	http.HandleFunc(Path, gocork.Statshandler)
}
