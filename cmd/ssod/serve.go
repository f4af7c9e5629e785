package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/dexidp/sso/engine"
	"github.com/dexidp/sso/totp"
	transporthttp "github.com/dexidp/sso/transport/http"
)

func totpVerifier(issuer string) *totp.Verifier {
	return totp.New(issuer)
}

type serveOptions struct {
	config string

	webHTTPAddr  string
	webHTTPSAddr string
}

func commandServe() *cobra.Command {
	options := serveOptions{}

	cmd := &cobra.Command{
		Use:     "serve [flags] [config file]",
		Short:   "Launch the authentication service",
		Example: "ssod serve config.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true

			options.config = args[0]

			return runServe(options)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&options.webHTTPAddr, "web-http-addr", "", "Web HTTP address")
	flags.StringVar(&options.webHTTPSAddr, "web-https-addr", "", "Web HTTPS address")

	return cmd
}

func applyConfigOverrides(options serveOptions, config *Config) {
	if options.webHTTPAddr != "" {
		config.Web.HTTP = options.webHTTPAddr
	}
	if options.webHTTPSAddr != "" {
		config.Web.HTTPS = options.webHTTPSAddr
	}
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log level is not one of the supported values (debug, info, warn, error): %s", level)
	}
}

func runServe(options serveOptions) error {
	configData, err := os.ReadFile(options.config)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %v", options.config, err)
	}

	var c Config
	if err := yaml.Unmarshal(configData, &c); err != nil {
		return fmt.Errorf("error parse config file %s: %v", options.config, err)
	}
	if err := replaceEnvKeys(&c, os.Getenv); err != nil {
		return fmt.Errorf("error parse config file %s: %v", options.config, err)
	}

	applyConfigOverrides(options, &c)

	if err := c.Validate(); err != nil {
		return err
	}

	level, err := parseLogLevel(c.Logger.Level)
	if err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}
	logger, err := newLogger(level, c.Logger.Format)
	if err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}
	logger.Info("config loaded", "storage", c.Storage.Type, "issuer", c.Issuer)

	driver, err := c.Storage.Config.Open(logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %v", err)
	}
	defer driver.Close()

	issuer := c.Issuer
	if issuer == "" {
		issuer = "sso"
	}

	eng := engine.New(driver, logger, totpVerifier(issuer))
	oauth := c.OAuth2.registry()

	ttl, err := c.Expiry.ttlConfig(transporthttp.DefaultTTLConfig())
	if err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}

	srv := transporthttp.New(eng, driver, oauth, logger, ttl)

	allowedTLSCiphers := []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	}

	var gr run.Group

	if c.Web.HTTP != "" {
		httpSrv := &http.Server{Addr: c.Web.HTTP, Handler: srv.Handler()}
		defer httpSrv.Close()
		if err := addServerRunner(&gr, logger, "http", httpSrv, "", ""); err != nil {
			return err
		}
	}

	if c.Web.HTTPS != "" {
		httpsSrv := &http.Server{
			Addr:    c.Web.HTTPS,
			Handler: srv.Handler(),
			TLSConfig: &tls.Config{
				CipherSuites:             allowedTLSCiphers,
				PreferServerCipherSuites: true,
				MinVersion:               tls.VersionTLS12,
			},
		}
		defer httpsSrv.Close()
		if err := addServerRunner(&gr, logger, "https", httpsSrv, c.Web.TLSCert, c.Web.TLSKey); err != nil {
			return err
		}
	}

	gr.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))
	if err := gr.Run(); err != nil {
		if _, ok := err.(run.SignalError); !ok {
			return fmt.Errorf("run groups: %w", err)
		}
		logger.Info("shutting down", "reason", err)
	}
	return nil
}

func addServerRunner(gr *run.Group, logger *slog.Logger, name string, srv *http.Server, tlsCrt, tlsKey string) error {
	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listening (%s) on %s: %v", name, srv.Addr, err)
	}

	gr.Add(func() error {
		logger.Info("listening", "server", name, "addr", srv.Addr)
		if tlsCrt != "" && tlsKey != "" {
			return srv.ServeTLS(listener, tlsCrt, tlsKey)
		}
		return srv.Serve(listener)
	}, func(err error) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		logger.Debug("starting graceful shutdown", "server", name)
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", "server", name, "err", err)
		}
	})
	return nil
}
