package main

import (
	"crypto/tls"
	"encoding/json"
	"expvar"
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"golang.org/x/crypto/acme/autocert"
)

var (
	// Tag is set by the CI build process
	Tag string
	// Build is set by the CI build process
	Build string

	// WebhookURL is the url for the webhook
	WebhookURL string
	// WebHookHeaders is an env var to transmit HTTP headers in JSON
	WebHookHeaders map[string]string
	// WebhookBearerToken is the bearer token passed to the webhook, it also guards the private routes
	WebhookBearerToken string
	// SecretKey is used to check JWT tokens signatures
	SecretKey string
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 4096,
}

// the standard logger is shared with the fleet and plan packages
var log = logrus.StandardLogger()

type serverConfig struct {
	HostPort   string
	DBFile     string
	Secret     string
	CPUProfile string
	MemProfile string
	SSL        bool
	SSLHost    string
	SSLEmail   string
	Dev        bool
	Origins    []string

	WebhookURL     string
	WebhookHeaders map[string]string
	WebhookBearer  string

	Simulation SimulationConfig
}

// loadConfig reads the flags, then lets the environment override them
func loadConfig(args []string, getenv func(string) string) (*serverConfig, error) {
	cfg := &serverConfig{Simulation: DefaultSimulationConfig()}

	fs := flag.NewFlagSet("FlowServer", flag.ContinueOnError)
	fs.StringVar(&cfg.HostPort, "host", "localhost:8000", "host and port for http server")
	fs.StringVar(&cfg.DBFile, "db", "flow.db", "database file name")
	fs.StringVar(&cfg.Secret, "secret", "developmentKey", "secret for JWT signatures")
	fs.StringVar(&cfg.CPUProfile, "cpuprofile", "", "write cpu profile to file")
	fs.StringVar(&cfg.MemProfile, "memprofile", "", "write memory profile to this file")
	fs.BoolVar(&cfg.SSL, "ssl", false, "Enable SSL support")
	fs.StringVar(&cfg.SSLHost, "sslhost", "", "FQDN for the SSL certificate")
	fs.BoolVar(&cfg.Dev, "dev", false, "allow development routes")
	fs.DurationVar(&cfg.Simulation.Interval, "tick", cfg.Simulation.Interval, "simulation tick interval")
	fs.Int64Var(&cfg.Simulation.Seed, "seed", 0, "seed for layout jitter, random missions and avoidance angles, 0 uses the clock")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if s := getenv("SECRET"); s != "" {
		cfg.Secret = s
	}
	if hp := getenv("HOST_PORT"); hp != "" {
		cfg.HostPort = hp
	}
	if dbname := getenv("DB_NAME"); dbname != "" {
		cfg.DBFile = dbname
	}
	if getenv("SSL") != "" {
		cfg.SSL = true
	}
	if h := getenv("SSL_HOST"); h != "" {
		cfg.SSLHost = h
	}
	cfg.SSLEmail = getenv("SSL_EMAIL")
	if getenv("DEV") != "" {
		cfg.Dev = true
	}
	if o := getenv("ORIGIN"); o != "" {
		cfg.Origins = strings.Split(o, ",")
	}

	if t := getenv("TICK_INTERVAL"); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("can't parse TICK_INTERVAL: %w", err)
		}
		cfg.Simulation.Interval = d
	}
	if s := getenv("SEED"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("can't parse SEED: %w", err)
		}
		cfg.Simulation.Seed = n
	}
	if cfg.Simulation.Interval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive, got %s", cfg.Simulation.Interval)
	}

	cfg.WebhookBearer = getenv("WEBHOOK_BEARER")
	cfg.WebhookURL = getenv("WEBHOOK_URL")
	if whh := getenv("WEBHOOK_HEADERS"); whh != "" && cfg.WebhookURL != "" {
		if err := json.Unmarshal([]byte(whh), &cfg.WebhookHeaders); err != nil {
			return nil, fmt.Errorf("can't JSON parse WEBHOOK_HEADERS: %w", err)
		}
	}
	return cfg, nil
}

func setupLogging(getenv func(string) string) {
	log.Formatter = &prefixed.TextFormatter{
		DisableTimestamp: true,
		ForceFormatting:  true,
	}
	level, err := logrus.ParseLevel(getenv("LOGLEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	switch {
	case Build == "":
		log.Infof("FlowServer development version")
	case Tag == "":
		log.Infof("FlowServer - build %s", Build)
	default:
		log.Infof("FlowServer %s - build %s", Tag, Build)
	}
}

func watchGoroutines() {
	goroutines := expvar.NewInt("num_goroutine")
	go func() {
		for range time.Tick(5 * time.Second) {
			goroutines.Set(int64(runtime.NumGoroutine()))
		}
	}()
}

// startProfiling writes the cpu profile after two minutes and the heap after one
func startProfiling(cpuprofile, memprofile string) {
	if cpuprofile != "" {
		log.Debug("Setting up CPU Prof")
		f, err := os.Create(cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		time.AfterFunc(2*time.Minute, func() {
			pprof.StopCPUProfile()
			f.Close()
			log.Debug("Done CPU prof output")
		})
	}
	if memprofile != "" {
		log.Debug("Setting up Mem Prof")
		f, err := os.Create(memprofile)
		if err != nil {
			log.Fatal(err)
		}
		time.AfterFunc(time.Minute, func() {
			pprof.WriteHeapProfile(f)
			f.Close()
			log.Debug("Done Mem prof output")
		})
	}
}

// newRouter mounts the websocket, the api, the private and the dev routes
func newRouter(cfg *serverConfig, sim *Simulation, persister Persister, wshandler *WSRouter) http.Handler {
	r := mux.NewRouter()

	upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	r.HandleFunc("/ws", wshandler.handle(upgrader))

	NewHTTPRouter(r.PathPrefix("/api").Subrouter(), sim, wshandler)

	r.HandleFunc("/api/private/backup", persister.BackupHandleFunc)
	r.HandleFunc("/api/private/jsondump", persister.JSONDumpHandleFunc)

	if cfg.Dev {
		r.HandleFunc("/api/dev/token", DevHelperGetToken)
	}

	return cors.New(cors.Options{
		AllowedOrigins: cfg.Origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"X-FLOW-TOKEN", "Content-Type"},
	}).Handler(r)
}

func serveTLS(cfg *serverConfig, handler http.Handler) error {
	certManager := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.SSLHost),
		Cache:      autocert.DirCache("certs"),
		Email:      cfg.SSLEmail,
	}
	srv := &http.Server{
		Addr:    ":https",
		Handler: handler,
		TLSConfig: &tls.Config{
			GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
				if hello.ServerName == "" {
					hello.ServerName = cfg.SSLHost
				}
				return certManager.GetCertificate(hello)
			},
			MinVersion: tls.VersionTLS12,
		},
	}

	// acme challenges
	go (&http.Server{Handler: certManager.HTTPHandler(nil), Addr: ":80"}).ListenAndServe()

	log.Info("TLS Server starting for ", cfg.SSLHost)
	return srv.ListenAndServeTLS("", "")
}

func main() {
	setupLogging(os.Getenv)
	watchGoroutines()

	cfg, err := loadConfig(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatal(err)
	}
	startProfiling(cfg.CPUProfile, cfg.MemProfile)

	SecretKey = cfg.Secret
	WebhookBearerToken = cfg.WebhookBearer
	WebhookURL = cfg.WebhookURL
	WebHookHeaders = cfg.WebhookHeaders

	var webhookwriter *WebhookWriter
	if WebhookURL != "" {
		webhookwriter = NewWebhookWriter(WebhookURL, WebHookHeaders, WebhookBearerToken)
		defer webhookwriter.Close()
	}

	persister := newBoltDBPersister(cfg.DBFile)
	defer persister.close()

	sim := NewSimulation(persister, cfg.Simulation)
	defer sim.Close()

	wshandler := NewWSRouter(sim, webhookwriter)
	handler := newRouter(cfg, sim, persister, wshandler)

	if cfg.SSL {
		log.Error(serveTLS(cfg, handler))
		return
	}

	log.Info("Server starting at ", cfg.HostPort)
	srv := &http.Server{
		Addr:    cfg.HostPort,
		Handler: handler,
	}
	log.Error(srv.ListenAndServe())
}
