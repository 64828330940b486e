package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-reservation/internal/admission"
	"github.com/iliyamo/concert-reservation/internal/cache"
	"github.com/iliyamo/concert-reservation/internal/clock"
	"github.com/iliyamo/concert-reservation/internal/config"
	"github.com/iliyamo/concert-reservation/internal/database"
	"github.com/iliyamo/concert-reservation/internal/events"
	"github.com/iliyamo/concert-reservation/internal/handler"
	"github.com/iliyamo/concert-reservation/internal/ledger"
	"github.com/iliyamo/concert-reservation/internal/lock"
	"github.com/iliyamo/concert-reservation/internal/ranking"
	"github.com/iliyamo/concert-reservation/internal/repository"
	"github.com/iliyamo/concert-reservation/internal/reservation"
	"github.com/iliyamo/concert-reservation/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	clk := clock.System()

	// Redis is optional: without it the service runs single-node on
	// process-local locks and an in-memory waiting queue.
	rdb := config.NewRedisClient()
	var locker lock.Locker
	var tokenStore admission.TokenStore
	if rdb != nil {
		log.Println("redis connected; distributed mode")
		locker = lock.NewRedisLocker(rdb)
		tokenStore = admission.NewRedisStore(rdb, cfg.QueueActiveLimit, clk)
	} else {
		log.Println("redis unavailable; single-node mode")
		locker = lock.NewLocal()
		tokenStore = admission.NewMemoryStore(cfg.QueueActiveLimit, clk)
	}

	queue := admission.NewService(tokenStore, clk, cfg.QueueTokenTTL)
	balances := ledger.New(repository.NewBalanceRepo(db), locker, clk, cfg.LockWait, cfg.LockLease)

	reservations := reservation.NewService(
		repository.NewSeatRepo(db),
		repository.NewReservationRepo(db),
		repository.NewPaymentRepo(db),
		balances,
		locker,
		clk,
		reservation.Options{
			SeatsPerDate: cfg.SeatsPerDate,
			HoldDuration: cfg.HoldDuration,
			LockWait:     cfg.LockWait,
			LockLease:    cfg.LockLease,
		},
	)

	availability := cache.NewAvailability(rdb, cfg.AvailabilityTTL)
	board := ranking.NewBoard(rdb, cfg.RankingTTL)
	reservations.Subscribe(events.NewLogNotifier())
	reservations.Subscribe(availability)
	reservations.Subscribe(board)
	reservations.Subscribe(events.NewPublisher())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := reservation.NewSweeper(reservations, cfg.SweepInterval)
	go sweeper.Run(ctx)
	go events.StartConsumer()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Auth:        handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db)),
		Admission:   handler.NewAdmissionHandler(queue),
		Reservation: handler.NewReservationHandler(reservations, queue),
		Concert:     handler.NewConcertHandler(reservations, availability, board),
		Balance:     handler.NewBalanceHandler(balances),
	}, queue, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		<-ctx.Done()
		_ = e.Shutdown(context.Background())
	}()
	if err := e.Start(addr); err != nil {
		log.Println(err)
	}
}
