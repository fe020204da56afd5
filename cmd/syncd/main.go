// Package main: provenance tracker service.
package main

import (
	"encoding/hex"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medtrace/psync/inventory"
	"github.com/medtrace/psync/lib/config"
	"github.com/medtrace/psync/lib/ledger"
	"github.com/medtrace/psync/lib/msg"
	"github.com/medtrace/psync/lib/msg/amqp"
	"github.com/medtrace/psync/lib/provider/hdrt"
	"github.com/medtrace/psync/lib/store"
	"github.com/medtrace/psync/lib/store/db"
	"github.com/medtrace/psync/provenance"
	"github.com/medtrace/psync/session"
	"github.com/medtrace/psync/tracker"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9090")
	flag.Parse()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	log.Printf("Configuration:%+v", conf)

	// connect to cache database
	var dbConn store.DB

	if conf.DBConn != "" {
		if dbConn, err = db.New(conf.DBType, conf.DBConn); err != nil {
			panic(err)
		}

		log.Printf("Connecting to database:%+v\n", conf.DBConn)
	}

	// load all ledger clients
	chains, err := ledger.Init(conf.Ledgers, conf.CallTimeout)
	if err != nil {
		panic(err)
	}

	log.Print("Ledger clients loaded")

	// load Prometheus monitor
	if *monitor {
		go func() {
			log.Println("Serving metrics API")

			h := http.NewServeMux()

			h.Handle("/metrics", promhttp.Handler())
			http.ListenAndServe(":9100", h)
		}()
	}

	// load message broker
	var mb msg.MsgBroker

	switch conf.MbType {
	case "amqp":
		if mb, err = amqp.New(conf.MbConn); err != nil {
			time.Sleep(10 * time.Second) // wait 10s for AMQP to be ready and try to reconnect

			if mb, err = amqp.New(conf.MbConn); err != nil {
				panic(err)
			}
		}

		if err = mb.Setup(nil); err != nil {
			panic(err)
		}
	default:
		log.Printf("Unknown message broker type: %s\n", conf.MbType)
	}

	// load HD wallet runtime
	seed, err := hex.DecodeString(conf.Seed)
	if err != nil {
		panic(err)
	}

	rt, err := hdrt.New(seed)
	if err != nil {
		panic(err)
	}

	// create session gateway and tracker service
	gw := session.NewGateway(rt, chains, session.New())

	t := tracker.New(conf.DBType, dbConn, mb, chains, gw, inventory.New(conf.ScanWindow), provenance.New(), rt,
		conf.CasGateway)

	// capture CTRL+C or docker's SIGTERM for gracious exit
	finish := make(chan int)

	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Println("Program killed !")
		// do last actions and wait for all write operations to end
		t.Stop()
		ledger.End(chains)
		close(finish)
	}()

	// republish session transitions and serve external rescan requests
	t.ManageSessionEvents()

	if err := t.ManageRefreshReqs(); err != nil {
		log.Printf("Error setting up broker readers for refresh requests:%e", err)
	}

	// init RESTful API, wait for its return and log response
	log.Printf("Tracker: %s\n", t.Init(conf.RestfulEndpoint, conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey))

	<-finish
}
