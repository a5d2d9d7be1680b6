package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/handlers"
	_ "github.com/lib/pq"

	"github.com/psiquelab/portal/internal/backend/postgres"
	"github.com/psiquelab/portal/internal/backend/ws"
	"github.com/psiquelab/portal/internal/chat"
	"github.com/psiquelab/portal/internal/config"
	"github.com/psiquelab/portal/internal/media"
	"github.com/psiquelab/portal/internal/session"
	"github.com/psiquelab/portal/internal/stats"
)

var (
	dsn        string
	feedURL    string
	signingKey string
	debugAddr  string
	email      string
	password   string
	runMigrate bool
)

func main() {
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=portal sslmode=disable", "database connection string")
	flag.StringVar(&feedURL, "feed-url", "ws://localhost:8000/realtime/messages", "realtime feed URL")
	flag.StringVar(&signingKey, "signing-key", "", "base64 encoded signing key")
	flag.StringVar(&debugAddr, "debug-addr", "localhost:8001", "debug server address")
	flag.StringVar(&email, "email", "", "member email")
	flag.StringVar(&password, "password", "", "member password")
	flag.BoolVar(&runMigrate, "migrate", false, "run schema migrations before starting")
	flag.Parse()

	logger := log.New(os.Stderr, "[portal] ", log.LstdFlags)

	cfg, err := config.NewConfig(dsn, feedURL, debugAddr, signingKey)
	if err != nil {
		logger.Fatal("config:", err)
	}

	db, err := postgres.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	if runMigrate {
		if err := db.Migrate(); err != nil {
			logger.Fatal("migrate:", err)
		}
		logger.Println("migrations applied")
	}

	mux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	debugSrv := &http.Server{
		Addr:    cfg.DebugAddr,
		Handler: handlers.LoggingHandler(os.Stderr, mux),
	}
	go func() {
		if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Println("debug server:", err)
		}
	}()

	ids := postgres.NewPgIdentityService(db, cfg.SigningKey)
	feed := ws.NewFeed(cfg.FeedURL, logger)
	chatSvc := chat.NewService(db, feed, statsUpdater, logger)
	ctrl := session.NewController(ids, db, chatSvc, statsUpdater, logger)

	ctrl.RegisterHooks(session.Hooks{
		OnActivated: func(s *session.Session) {
			logger.Printf("session active for %s", s.DisplayName())
		},
		OnTearingDown: func(s *session.Session) {
			logger.Printf("tearing down session for %s", s.Identity.Email)
		},
	})

	ctx := context.Background()

	sess, err := ctrl.Login(ctx, email, password)
	if err != nil {
		logger.Fatal("login:", err)
	}

	printMemberView(sess)
	sess.Transcript.SetOpen(true)

	// stdin lines become chat messages
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			body := scanner.Text()
			if body == "" {
				continue
			}
			if ctrl.State() != session.StateActive {
				return
			}
			if err := sess.Transcript.Send(ctx, body); err != nil {
				logger.Println("send:", err)
			}
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	logger.Printf("received signal: %s", sig)

	if err := ctrl.Logout(ctx); err != nil {
		logger.Println("logout:", err)
	}

	if err := debugSrv.Shutdown(context.Background()); err != nil {
		logger.Println("debug server shutdown:", err)
	}

	logger.Println("shutdown complete")
}

func printMemberView(sess *session.Session) {
	done, total := sess.Engine.Progress()
	fmt.Printf("Welcome, %s! (%d of %d lessons completed)\n", sess.DisplayName(), done, total)

	for i, s := range sess.Engine.Statuses() {
		embed := media.ResolveEmbed(s.Item.MediaURL)
		fmt.Printf("%2d. [%s] %s (%s)\n", i+1, s.State, s.Item.Title, embed.Kind)
	}

	if len(sess.Files) > 0 {
		fmt.Println("Files:")
		for _, f := range sess.Files {
			fmt.Printf("  - [%s] %s %s\n", media.FileIcon(f.Name), f.Name, f.FileURL)
		}
	}

	fmt.Printf("%d member(s) active in chat, %d unread\n",
		sess.Transcript.Presence(), sess.Transcript.UnreadCount())
}
