package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// withServerHeader adds "Server: labmap/<CompileVersion>" to every answer.
// HEAD / is answered 200 with no body so probes can check liveness
// without a session.
func withServerHeader(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "labmap/"+CompileVersion)

		if r.Method == http.MethodHead && r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// serveWithDomain runs
//   - :80  ACME HTTP-01 challenges plus a 301 to https://<domain>/...
//   - :443 HTTPS with Let's Encrypt certificates.
//
// When autocert cannot issue for a host (an IP, an odd SNI) the last
// certificate obtained for the domain is served instead. Errors are
// only logged.
func serveWithDomain(domain string, handler http.Handler, logf, errorf func(string, ...any)) {
	certMgr := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
		Cache:  autocert.DirCache("certs"),
		HostPolicy: func(_ context.Context, host string) error {
			if host == domain || host == "www."+domain {
				return nil
			}
			if net.ParseIP(host) != nil {
				return nil
			}
			return errors.New("acme/autocert: host not configured")
		},
	}

	// :80 (challenge + redirect)
	go func() {
		mux80 := http.NewServeMux()
		mux80.Handle("/.well-known/acme-challenge/", certMgr.HTTPHandler(nil))
		mux80.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "https://"+domain+r.URL.RequestURI(), http.StatusMovedPermanently)
		})

		logf("HTTP  server (ACME+redirect) ➜ :80")
		if err := (&http.Server{
			Addr:              ":80",
			Handler:           mux80,
			ReadHeaderTimeout: 10 * time.Second,
		}).ListenAndServe(); err != nil {
			errorf("HTTP  server error: %v", err)
		}
	}()

	// daily renewal check
	go func() {
		t := time.NewTicker(24 * time.Hour)
		defer t.Stop()
		for range t.C {
			if _, err := certMgr.GetCertificate(&tls.ClientHelloInfo{ServerName: domain}); err != nil {
				errorf("autocert renewal check: %v", err)
			}
		}
	}()

	// :443 (HTTPS)
	tlsCfg := certMgr.TLSConfig()
	tlsCfg.MinVersion = tls.VersionTLS12

	var fallback atomic.Pointer[tls.Certificate]
	go func() {
		for fallback.Load() == nil {
			if c, err := certMgr.GetCertificate(&tls.ClientHelloInfo{ServerName: domain}); err == nil {
				fallback.Store(c)
				return
			}
			time.Sleep(time.Minute)
		}
	}()
	tlsCfg.GetCertificate = func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
		c, err := certMgr.GetCertificate(hello)
		if err == nil {
			return c, nil
		}
		if c := fallback.Load(); c != nil {
			return c, nil
		}
		return nil, err
	}

	logf("HTTPS server for %s ➜ :443", domain)
	if err := (&http.Server{
		Addr:              ":443",
		Handler:           handler,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}).ListenAndServeTLS("", ""); err != nil {
		errorf("HTTPS server error: %v", err)
	}
}
