// README: Entry point; loads config, wires stores and services, starts the API, metrics server and stale monitor.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"homefix/internal/config"
	httptransport "homefix/internal/http"
	"homefix/internal/infra"
	"homefix/internal/logging"
	"homefix/internal/metrics"
	"homefix/internal/modules/booking"
	"homefix/internal/modules/catalog"
	"homefix/internal/modules/offer"
	"homefix/internal/modules/payment"
	"homefix/internal/modules/rating"
	"homefix/internal/notify"
	"homefix/internal/store/memory"
)

type catalogStore interface {
	catalog.Repository
	catalog.Writer
}

type stores struct {
	tx       booking.TxRunner
	catalog  catalogStore
	bookings booking.Repository
	offers   offer.Repository
	ratings  rating.Repository
	payments payment.Repository
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.Fatalf("logger: %v", err)
	}
	gin.SetMode(gin.ReleaseMode)
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer st.close()

	if cfg.Store.SeedFile != "" {
		seed, err := catalog.LoadSeed(cfg.Store.SeedFile)
		if err != nil {
			log.WithError(err).Fatal("load seed")
		}
		if err := seed.Apply(ctx, st.catalog, cfg.Booking.Currency); err != nil {
			log.WithError(err).Fatal("apply seed")
		}
		log.WithFields(logrus.Fields{
			"services":    len(seed.Services),
			"technicians": len(seed.Technicians),
		}).Info("catalog seeded")
	}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("auth init")
	}

	hub := notify.NewHub(cfg.Notify.Buffer, log.WithField("component", "hub"))
	var bus notify.Publisher = hub
	if cfg.Notify.Backend == "redis" {
		client, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.WithError(err).Fatal("redis init")
		}
		defer client.Close()
		redisBus := notify.NewRedisBus(client, cfg.Notify.Topic, log.WithField("component", "notify"))
		go func() {
			if err := redisBus.Relay(ctx, hub); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("notification relay stopped")
			}
		}()
		bus = redisBus
	}

	directory := catalog.NewDirectory(st.catalog)
	bookingSvc := booking.NewService(st.bookings, directory, st.tx, bus,
		booking.WithLogger(log.WithField("module", "booking")),
		booking.WithCurrency(cfg.Booking.Currency),
		booking.WithMaxRetries(cfg.Booking.MaxRetries),
	)
	ratingSvc := rating.NewService(st.ratings, bookingSvc, directory, bus,
		rating.WithLogger(log.WithField("module", "rating")),
		rating.WithConfig(rating.Config{
			DefaultAverage: cfg.Rating.DefaultAverage,
			RecentWindow:   cfg.Rating.RecentWindow,
			ListLimit:      cfg.Rating.ListLimit,
		}),
	)
	offerSvc := offer.NewService(st.offers, bookingSvc, directory, ratingSvc,
		offer.WithLogger(log.WithField("module", "offer")),
		offer.WithCurrency(cfg.Booking.Currency),
	)
	paymentSvc := payment.NewService(st.payments, bookingSvc,
		payment.WithLogger(log.WithField("module", "payment")),
		payment.WithCurrency(cfg.Booking.Currency),
	)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Bookings: bookingSvc,
		Offers:   offerSvc,
		Ratings:  ratingSvc,
		Payments: paymentSvc,
		Catalog:  directory,
		Hub:      hub,
		Verifier: verifier,
		Log:      log.WithField("component", "http"),
	})
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go startMetricsServer(ctx, cfg.HTTP.MetricsAddr, log)
	go bookingSvc.RunStaleMonitor(ctx, cfg.Booking.MonitorTick, cfg.Booking.StaleAfter)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.WithFields(logrus.Fields{
		"addr":   cfg.HTTP.Addr,
		"store":  cfg.Store.Backend,
		"notify": cfg.Notify.Backend,
		"auth":   cfg.Auth.Provider,
	}).Info("homefix api listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("http server")
	}
	log.Info("homefix api stopped")
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	if cfg.Store.Backend == "memory" {
		m := memory.New()
		return &stores{
			tx:       m,
			catalog:  m.Catalog(),
			bookings: m.Bookings(),
			offers:   m.Offers(),
			ratings:  m.Ratings(),
			payments: m.Payments(),
			close:    func() {},
		}, nil
	}
	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, err
	}
	return &stores{
		tx:       db,
		catalog:  catalog.NewStore(db),
		bookings: booking.NewStore(db),
		offers:   offer.NewStore(db),
		ratings:  rating.NewStore(db),
		payments: payment.NewStore(db),
		close:    db.Close,
	}, nil
}

func newVerifier(ctx context.Context, cfg config.Config) (infra.TokenVerifier, error) {
	if cfg.Auth.Provider == "firebase" {
		return infra.NewFirebaseVerifier(ctx, cfg.Auth.FirebaseProject, cfg.Auth.CredentialsFile)
	}
	v, err := infra.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func startMetricsServer(ctx context.Context, addr string, log logrus.FieldLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("metrics server")
	}
}
