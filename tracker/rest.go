package tracker

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const timeout = 15

// Init sets up and starts the http/https server to service the RESTful API for the tracker service. If sslPort,
// sslCert and sslKey are informed, it will start an https (TLS) server on the specified endpoint.
func (t *Tracker) Init(endpoint, port, sslPort, sslCert, sslKey string) string {
	var err, errTLS error

	// API definition
	r := mux.NewRouter()
	r.HandleFunc("/", t.homeHandler)
	r.HandleFunc("/networks", t.networksHandler).Methods("GET")                 // get all available networks
	r.HandleFunc("/session", t.connectHandler).Methods("POST")                  // connect the wallet session
	r.HandleFunc("/session", t.sessionHandler).Methods("GET")                   // session snapshot and balances
	r.HandleFunc("/session", t.disconnectHandler).Methods("DELETE")             // disconnect the wallet session
	r.HandleFunc("/session/account", t.switchAccountHandler).Methods("PUT")     // switch the wallet account
	r.HandleFunc("/assets", t.assetsHandler).Methods("GET")                     // scan owned assets
	r.HandleFunc("/assets/{id}/provenance", t.provenanceHandler).Methods("GET") // ownership history
	r.HandleFunc("/assets/{id}/document", t.documentHandler).Methods("GET")     // document URL from content hash
	r.HandleFunc("/assets/{id}/transfer", t.transferHandler).Methods("POST")    // transfer an asset
	r.HandleFunc("/assets/{id}/listing", t.listAssetHandler).Methods("POST")    // list an asset for sale
	r.HandleFunc("/assets/{id}/listing", t.listingHandler).Methods("GET")       // get a marketplace listing
	r.HandleFunc("/role/{address}", t.roleHandler).Methods("GET")               // identity registry role
	http.Handle("/", r)

	// setup shutdown channel
	t.sc = make(chan struct{})

	// start http server
	if port != "" {
		t.s = &http.Server{
			Handler: r,
			Addr:    endpoint + ":" + port,
			// Good practice: enforce timeouts for servers you create!
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			err = t.s.ListenAndServe()
		}()

		log.Printf("Listening to API http requests on %s:%s", endpoint, port)
	}
	// start https server
	if sslPort != "" && sslCert != "" && sslKey != "" {
		t.ss = &http.Server{
			Handler: r,
			Addr:    endpoint + ":" + sslPort,
			// Good practice: enforce timeouts for servers you create!
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			errTLS = t.ss.ListenAndServeTLS(sslCert, sslKey)
		}()

		log.Printf("Listening to API https requests on %s:%s", endpoint, sslPort)
	}
	// wait for servers to be shutdown
	<-t.sc

	return fmt.Sprintf("shutdown http server:%e, https server:%e", err, errTLS)
}
