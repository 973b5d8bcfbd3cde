package gocork

import "strings"
import "net/http"
import "time"

import "github.com/bnclabs/gson"

// Statshandler http handler to handle statistics endpoint, returns
// statistics for specified pipeline or aggregate statistics of all
// pipelines, based on the query parameters.
func Statshandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	name := query["name"]
	keyparam := query["keys"]
	keys := []string{}
	if len(keyparam) > 0 {
		keys = csv2strings(keyparam[0], keys)
	}

	var stats map[string]uint64
	if len(name) == 0 {
		stats = Stats()
	} else if stats = Stat(name[0]); stats == nil {
		http.Error(w, "unknown pipeline "+name[0], http.StatusNotFound)
		return
	}
	stats = filterstats(stats, keys)
	stats["timestamp"] = uint64(time.Now().UnixNano())

	value := make(map[string]interface{}, len(stats))
	for k, v := range stats {
		value[k] = v
	}
	buf, conf := make([]byte, 64*1024), gson.NewDefaultConfig()
	jsonstats := conf.NewValue(value).Tojson(conf.NewJson(buf, 0)).Bytes()

	header := w.Header()
	header["Content-Type"] = []string{"application/json"}
	header["Access-Control-Allow-Origin"] = []string{"*"}
	w.WriteHeader(http.StatusOK)
	w.Write(jsonstats)
	w.Write([]byte("\n"))
}

func filterstats(stats map[string]uint64, keys []string) map[string]uint64 {
	if len(keys) == 0 {
		return stats
	}
	m := map[string]uint64{}
	for _, key := range keys {
		m[key] = stats[key]
	}
	return m
}

func csv2strings(line string, out []string) []string {
	for _, str := range strings.Split(line, ",") {
		if str = strings.Trim(str, " \n\t\r"); str != "" {
			out = append(out, str)
		}
	}
	return out
}
