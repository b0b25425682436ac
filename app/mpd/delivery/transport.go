package delivery

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sbejawada/mpool-kmod/app/mpd/usecase/admin"
)

func makeHandler(ah admin.Handlers) http.Handler {
	r := mux.NewRouter()

	// API routers.
	ar := r.PathPrefix("/v1").Subrouter()

	// Pool request handlers.
	ar.Path("/pool").Methods("GET").HandlerFunc(ah.PoolInfoHandler)
	ar.Path("/pool/usage").Methods("GET").HandlerFunc(ah.PoolUsageHandler)

	// Mblock request handlers.
	ar.Path("/mblocks/{objid}").Methods("GET").HandlerFunc(ah.MblockPropsHandler)

	// Prometheus scrape endpoint.
	r.Path("/metrics").Methods("GET").Handler(promhttp.Handler())

	return r
}

// httpTypeBytes returns type bytes which are used to multiplexing.
func httpTypeBytes() []byte {
	return []byte{
		0x44, // 'D' of DELETE
		0x47, // 'G' of GET
		0x50, // 'P' of POST, PUT
	}
}

// rpcTypeBytes returns type bytes which are used to multiplexing.
func rpcTypeBytes() []byte {
	return []byte{
		0x02, // rpcMpd
	}
}
