package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/park285/cheese-vrchess/internal/chess"
	"github.com/park285/cheese-vrchess/internal/config"
	"github.com/park285/cheese-vrchess/internal/domain"
	"github.com/park285/cheese-vrchess/internal/obslog"
	"github.com/park285/cheese-vrchess/internal/peer"
	"github.com/park285/cheese-vrchess/internal/telemetry"
	"github.com/park285/cheese-vrchess/internal/wsnet"
	"github.com/park285/cheese-vrchess/pkg/chessdto"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logging init error: %v", err)
	}
	defer obslog.Sync()

	sink, err := telemetry.NewFileSink(cfg.TelemetryDir)
	if err != nil {
		log.Fatalf("telemetry init error: %v", err)
	}

	done := make(chan struct{}, 1)
	quit := func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}

	client := wsnet.NewClient(cfg.ServerURL)
	var driver *peer.Driver
	driver = peer.New(client, peer.Options{
		Selection: chessdto.SelectionData{Avatar: cfg.Avatar, Controller: cfg.Controller, Opponent: cfg.Opponent},
		Recorder:  telemetry.NewRecorder(sink),
		Hooks: peer.Hooks{
			OnSeat: func(c domain.Color) { fmt.Printf("seated as %s\n", c) },
			OnRedirect: func(url string) {
				fmt.Printf("lobby unavailable, go to %s\n", url)
				quit()
			},
			OnStart: func(self, opp chessdto.SeatView) {
				fmt.Printf("game started: %s (%s) vs %s (%s)\n", self.Avatar, self.Color, opp.Avatar, opp.Color)
				fmt.Println("enter squares to select, e.g. e2 then e4")
			},
			OnMove: func(rec domain.MoveRecord, remote bool) {
				who := "you"
				if remote {
					who = "opponent"
				}
				fmt.Printf("%s: %s\n", who, rec)
				if st := driver.Match(); st != nil {
					fmt.Println(st.FEN())
				}
			},
			OnGameOver: func(st chess.Status) {
				if st.Winner == "" {
					fmt.Printf("draw (%s)\n", st.Method)
					return
				}
				fmt.Printf("%s wins (%s)\n", st.Winner, st.Method)
			},
			OnReset: func(left domain.Color) { fmt.Printf("%s left, waiting for a new opponent\n", left) },
		},
	})
	client.OnMessage(driver.Handle)
	client.OnStateChange(func(s wsnet.ClientState) {
		obslog.L().Info("client_state", zap.String("state", string(s)))
		if s == wsnet.StateDisconnected {
			quit()
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = client.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatalf("connect error: %v", err)
	}

	go readSelections(driver)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-done:
	}

	cctx, ccancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer ccancel()
	_ = client.Close(cctx)
}

func readSelections(d *peer.Driver) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		for _, tok := range strings.Fields(sc.Text()) {
			sq, err := domain.ParseSquare(tok)
			if err != nil {
				fmt.Printf("not a square: %s\n", tok)
				continue
			}
			if err := d.Select(sq); err != nil {
				fmt.Printf("selection failed: %v\n", err)
				continue
			}
			if st := d.Match(); st != nil {
				if sel, ok := st.Selected(); ok {
					fmt.Printf("selected %s, targets %v\n", sel, st.LegalTargets())
				}
			}
		}
	}
}
