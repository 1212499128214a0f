package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/tonicpow/wallet-recovery-go/api"
	"github.com/tonicpow/wallet-recovery-go/challenge"
	"github.com/tonicpow/wallet-recovery-go/comms"
	"github.com/tonicpow/wallet-recovery-go/config"
	"github.com/tonicpow/wallet-recovery-go/database"
	"github.com/tonicpow/wallet-recovery-go/delaynotify"
	"github.com/tonicpow/wallet-recovery-go/notification"
	"github.com/tonicpow/wallet-recovery-go/relationship"
	"github.com/tonicpow/wallet-recovery-go/router"
	"github.com/tonicpow/wallet-recovery-go/userpool"
)

func main() {

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	conn, err := database.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatalf("error connecting to mongo: %v", err)
	}

	notifier := notification.NewService(conn)

	server := &api.Server{
		Accounts: conn,
		Orchestrator: &delaynotify.Orchestrator{
			Accounts:        conn,
			Store:           conn,
			Notifier:        notifier,
			DelayPeriod:     config.DelayPeriod,
			TestDelayPeriod: config.TestDelayPeriod,
		},
		Relationships:         relationship.NewService(conn, config.InvitationTTL),
		Challenges:            challenge.NewService(conn, conn),
		Comms:                 comms.NewService(conn, notifier),
		UserPool:              userpool.NewPool(conn.Db()),
		History:               conn,
		SocialRecoveryEnabled: config.SocialRecoveryEnabled,
	}

	startServer(server)
}

func startServer(server *api.Server) {
	// Load the server
	log.Println("starting Go web server on http://localhost:" + config.Port)
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      router.Handlers(server),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	log.Fatalln(srv.ListenAndServe())
}
