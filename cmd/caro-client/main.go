package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/haanhng/caro-client-go/internal/config"
	"github.com/haanhng/caro-client-go/internal/identity"
	"github.com/haanhng/caro-client-go/internal/notices"
	"github.com/haanhng/caro-client-go/internal/obslog"
	"github.com/haanhng/caro-client-go/internal/pushio"
	"github.com/haanhng/caro-client-go/internal/session"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	idStore, err := identity.NewStore(cfg.RedisURL, cfg.RecentResultsCap)
	if err != nil {
		log.Fatalf("identity store init error: %v", err)
	}
	defer idStore.Close()

	rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
	localID, err := identity.Resolve(rctx, idStore, cfg.AccountID, cfg.AccountName)
	rcancel()
	if err != nil {
		log.Fatalf("identity resolve error: %v", err)
	}
	logger.Info("identity_resolved",
		zap.String("kind", string(localID.Kind)),
		zap.String("name", localID.Name),
	)

	headers := func() map[string]string {
		h := map[string]string{}
		if cfg.DeviceToken != "" {
			h["X-Device-Token"] = cfg.DeviceToken
		}
		return h
	}

	httpClient := pushio.NewClient(cfg.ServerBaseURL, pushio.WithHeaderProvider(headers))

	ws := pushio.NewWebSocket(cfg.ServerWSURL, cfg.ReconnectAttempts, cfg.ReconnectDelay)
	ws.SetHeaderProvider(headers)

	catalog, err := notices.New(cfg.NoticeTemplateDir)
	if err != nil {
		log.Fatalf("notice catalog error: %v", err)
	}

	store := session.NewStore(logger, ws, httpClient, localID, session.Config{
		DebounceWindow: cfg.DebounceWindow,
		FinishGrace:    cfg.FinishGrace,
	})
	store.AttachArchiver(idStore)
	store.AttachSubmitter(httpClient)
	store.AttachNameSaver(idStore)
	store.OnNotice(func(n session.Notice) {
		fmt.Println("! " + catalog.Render(n.Kind, n.Text))
	})
	store.OnReaction(func(fromSeat session.Seat, emoji, fromName string) {
		fmt.Printf("* %s (seat %d): %s\n", fromName, fromSeat, emoji)
	})

	ws.OnMessage(func(msg *pushio.Message) {
		store.HandleMessage(msg)
	})
	ws.OnStateChange(func(state pushio.WebSocketState) {
		logger.Info("ws_state", zap.String("state", string(state)))
		store.HandleTransportState(state)
	})

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		cancel()
		log.Fatalf("ws connect error: %v", err)
	}
	cancel()

	go repl(store, idStore, localID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	store.Close()
	_ = ws.Close(context.Background())
}

func repl(store *session.Store, idStore *identity.Store, localID identity.Identity) {
	sc := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: join <room> | move <row> <col> | start | restart | undo <n> | ok <n> | no | concede | name <name> | react <emoji> | state | results | leave | quit")
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

		var err error
		switch cmd {
		case "join":
			if len(args) != 1 {
				err = session.ErrInvalidArgs
				break
			}
			err = store.JoinSession(ctx, args[0])
		case "move":
			var row, col int
			if row, col, err = parseMove(args); err == nil {
				err = store.SubmitMove(ctx, row, col)
			}
		case "start":
			err = store.BeginSession(ctx)
		case "restart":
			err = store.RestartSession(ctx)
		case "undo":
			var n int
			if n, err = parseNum(args); err == nil {
				err = store.RequestUndo(ctx, n)
			}
		case "ok":
			var n int
			if n, err = parseNum(args); err == nil {
				err = store.ApproveUndo(ctx, n)
			}
		case "no":
			err = store.RejectUndo(ctx)
		case "concede":
			err = store.Concede(ctx)
		case "name":
			if len(args) == 0 {
				err = session.ErrInvalidArgs
				break
			}
			err = store.RenameGuest(ctx, strings.Join(args, " "))
		case "react":
			if len(args) != 1 {
				err = session.ErrInvalidArgs
				break
			}
			err = store.SendReaction(ctx, args[0])
		case "state":
			printState(store)
		case "results":
			recs, rerr := idStore.RecentResults(ctx, localID.Value)
			if rerr != nil {
				err = rerr
				break
			}
			for _, r := range recs {
				fmt.Printf("  %s room=%s winner=%d score=%d:%d moves=%d\n",
					r.FinishedAt.Format("2006-01-02 15:04"), r.Code, r.Winner, r.Score[0], r.Score[1], r.MoveCount)
			}
		case "leave":
			err = store.LeaveSession(ctx)
		case "quit", "exit":
			cancel()
			_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
			return
		default:
			fmt.Println("unknown command:", cmd)
		}
		cancel()
		if err != nil {
			fmt.Println("error:", err)
		}
	}
}

func parseMove(args []string) (int, int, error) {
	if len(args) != 2 {
		return 0, 0, session.ErrInvalidArgs
	}
	row, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, session.ErrInvalidArgs
	}
	col, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, session.ErrInvalidArgs
	}
	return row, col, nil
}

func parseNum(args []string) (int, error) {
	if len(args) != 1 {
		return 0, session.ErrInvalidArgs
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, session.ErrInvalidArgs
	}
	return n, nil
}

func printState(store *session.Store) {
	rv := store.RosterView()
	pv := store.PlayView()
	if rv.Session == nil {
		fmt.Println("no active session")
		return
	}
	sess := rv.Session
	fmt.Printf("room %s (%s) status=%s score=%d:%d\n", sess.Code, sess.ID, sess.Status, sess.Score[0], sess.Score[1])
	for _, p := range rv.Roster {
		tag := ""
		if p.Seat == rv.Seat {
			tag = " (you)"
		}
		kind := "account"
		if p.Guest {
			kind = "guest"
		}
		fmt.Printf("  seat %d: %s [%s]%s\n", p.Seat, p.Name, kind, tag)
	}
	marks := [3]string{".", "x", "o"}
	if sess.Markers[0] != "" {
		marks[1] = sess.Markers[0]
	}
	if sess.Markers[1] != "" {
		marks[2] = sess.Markers[1]
	}
	for _, row := range sess.Board {
		var b strings.Builder
		for _, c := range row {
			if c >= 0 && c <= 2 {
				b.WriteString(marks[c])
			} else {
				b.WriteString("?")
			}
			b.WriteString(" ")
		}
		fmt.Println(" " + b.String())
	}
	if pv.Status == session.StatusPlaying {
		who := "opponent"
		if pv.LocalTurn {
			who = "you"
		}
		fmt.Printf("turn: seat %d (%s), move #%d\n", pv.Turn, who, pv.MoveCount)
	}
	if pv.AwaitingApproval && pv.Pending != nil {
		fmt.Printf("undo pending: opponent wants to roll back to move %d (ok %d / no)\n", pv.Pending.MoveNumber, pv.Pending.MoveNumber)
	}
	if pv.RequestOutstanding {
		fmt.Println("undo request sent, waiting for opponent")
	}
}
