// Command linkshell is an interactive harness for the CampusLink
// coordination layer. It wires the deep-link queue, the subscription
// registry and the session manager against a live Supabase project and
// exposes them through a small stdin command loop, which is the
// quickest way to poke at gate ordering and reconnect behaviour
// without a device build.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/campuslink/appcore/infra/supabase"
	"github.com/campuslink/appcore/internal/cache"
	"github.com/campuslink/appcore/internal/config"
	"github.com/campuslink/appcore/internal/deeplink"
	"github.com/campuslink/appcore/internal/events"
	"github.com/campuslink/appcore/internal/lifecycle"
	"github.com/campuslink/appcore/internal/realtime"
	"github.com/campuslink/appcore/internal/session"
)

func main() {
	var (
		envFile    = flag.String("env", ".env", "Path to .env file with CAMPUSLINK_* settings")
		configFile = flag.String("config", "", "Optional YAML config file (overrides env)")
		eventSize  = flag.Int("events", 256, "Coordination event log capacity")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load env (%s): %v\n", *envFile, err)
		os.Exit(1)
	}

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFromFile(*configFile)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()

	client, err := supabase.New(supabase.Config{
		ProjectURL: cfg.SupabaseURL,
		AnonKey:    cfg.AnonKey,
		Timeout:    cfg.HTTPTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("supabase client")
	}

	eventLog := events.NewLog(*eventSize)

	queue := deeplink.NewQueue(log,
		deeplink.WithDedupWindow(cfg.DedupWindow),
		deeplink.WithRecorder(eventLog))
	queue.SetFlushCallback(func(path string) {
		fmt.Printf("navigate -> %s\n", path)
	})

	registry := realtime.NewRegistry(log, realtime.WithRecorder(eventLog))
	store := cache.New(log, cfg.CacheTTL)
	reconnector := realtime.NewReconnector(log, registry, store,
		realtime.WithReconnectRecorder(eventLog))
	coordinator := lifecycle.NewCoordinator(log, registry, reconnector)
	manager := session.NewManager(log, client.Auth(), queue, registry, store,
		session.WithRecorder(eventLog))

	ctx := context.Background()
	shell := &shell{
		log:         log,
		client:      client,
		eventLog:    eventLog,
		queue:       queue,
		registry:    registry,
		store:       store,
		coordinator: coordinator,
		manager:     manager,
	}
	shell.run(ctx)
}

type shell struct {
	log         zerolog.Logger
	client      *supabase.Client
	eventLog    *events.Log
	queue       *deeplink.Queue
	registry    *realtime.Registry
	store       *cache.Store
	coordinator *lifecycle.Coordinator
	manager     *session.Manager
}

func (s *shell) run(ctx context.Context) {
	fmt.Println("linkshell ready, type 'help' for commands")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			s.registry.Close()
			return
		}
		if err := s.dispatch(ctx, fields[0], fields[1:]); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (s *shell) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		s.help()
	case "open":
		if len(args) != 1 {
			return fmt.Errorf("usage: open <url>")
		}
		s.queue.Enqueue(args[0])
	case "nav-ready":
		s.queue.SetNavReady()
	case "auth":
		if len(args) != 1 || (args[0] != "in" && args[0] != "out") {
			return fmt.Errorf("usage: auth in|out")
		}
		s.queue.SetAuthReady(args[0] == "in")
	case "signin":
		if len(args) != 2 {
			return fmt.Errorf("usage: signin <email> <password>")
		}
		if err := s.manager.SignIn(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("signed in as %s\n", s.manager.UserID())
	case "signout":
		if err := s.manager.SignOut(ctx); err != nil {
			return err
		}
		fmt.Println("signed out")
	case "callback":
		if len(args) < 1 {
			return fmt.Errorf("usage: callback <url> [code-verifier]")
		}
		verifier := ""
		if len(args) > 1 {
			verifier = args[1]
		}
		if err := s.manager.HandleCallback(ctx, args[0], verifier); err != nil {
			return err
		}
		fmt.Printf("signed in as %s\n", s.manager.UserID())
	case "sub":
		if len(args) != 2 {
			return fmt.Errorf("usage: sub <kind> <table>")
		}
		return s.subscribe(ctx, args[0], args[1])
	case "unsub":
		if len(args) != 1 {
			return fmt.Errorf("usage: unsub <kind>")
		}
		s.registry.Unsubscribe(realtime.Name(args[0], s.manager.UserID()))
	case "suspend":
		s.coordinator.Suspend()
	case "resume":
		return s.coordinator.Resume()
	case "reset":
		s.queue.Reset()
	case "pending":
		if p := s.queue.Pending(); p != nil {
			fmt.Printf("pending %s (received %s)\n", p.NormalizedPath, p.EnqueuedAt.Format(time.RFC3339))
		} else {
			fmt.Println("nothing pending")
		}
	case "channels":
		for _, name := range s.registry.Names() {
			fmt.Println(name)
		}
	case "events":
		for _, ev := range s.eventLog.Recent(20) {
			fmt.Printf("%s %-28s %s%s\n",
				ev.Timestamp.Format("15:04:05"), ev.Type, ev.Topic, ev.Path)
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (s *shell) subscribe(ctx context.Context, kind, table string) error {
	userID := s.manager.UserID()
	if userID == "" {
		return fmt.Errorf("sign in first")
	}
	name := realtime.Name(kind, userID)
	token := ""
	if sess := s.manager.Session(); sess != nil {
		token = sess.AccessToken
	}

	dial := func() (realtime.ChannelHandle, error) {
		return s.client.Realtime().Channel(name).
			OnPostgresChanges(supabase.SubscriptionConfig{
				Schema: "public",
				Table:  table,
				Event:  supabase.EventAll,
			}, func(event supabase.RealtimeEvent) {
				fmt.Printf("%s: %s on %s\n", name, event.Type, event.Table)
			}).
			WithToken(token).
			Subscribe(ctx)
	}

	handle, err := dial()
	if err != nil {
		return err
	}
	s.registry.Subscribe(name, handle, func() realtime.ChannelHandle {
		h, err := dial()
		if err != nil {
			s.log.Error().Err(err).Str("channel", name).Msg("redial failed")
			return nil
		}
		return h
	})
	return nil
}

func (s *shell) help() {
	fmt.Print(`commands:
  open <url>                  enqueue a deep link
  nav-ready                   mark navigation mounted
  auth in|out                 resolve the auth gate directly
  signin <email> <password>   password sign-in via Supabase
  signout                     sign out and reset coordination state
  callback <url> [verifier]   handle an auth callback link
  sub <kind> <table>          subscribe <kind>:<user> to a table
  unsub <kind>                tear down a channel
  suspend / resume            background and foreground transitions
  reset / pending / channels / events
  quit
`)
}
