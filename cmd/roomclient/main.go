package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shalloville/shalloville/internal/config"
	"github.com/shalloville/shalloville/internal/host"
	"github.com/shalloville/shalloville/internal/media"
	"github.com/shalloville/shalloville/internal/media/vp8"
	"github.com/shalloville/shalloville/internal/motion"
	"github.com/shalloville/shalloville/internal/reconcile"
	"github.com/shalloville/shalloville/internal/room"
	"github.com/shalloville/shalloville/internal/session"
	"github.com/shalloville/shalloville/pkg/roomservice"
	"github.com/shalloville/shalloville/pkg/service"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
)

type options struct {
	Room     string
	Name     string
	Create   bool
	Map      string
	Camera   bool
	Chat     string
	Walk     string
	Tick     time.Duration
	Cols     int
	Rows     int
	Tile     float64
	Spawn    int
	Hitbox   []int
	Wardrobe map[string]string
}

func parseOptions(args []string) (*options, error) {
	fs := pflag.NewFlagSet("roomclient", pflag.ContinueOnError)

	opts := &options{}
	fs.StringVarP(&opts.Room, "room", "r", "", "room id to join")
	fs.StringVarP(&opts.Name, "name", "n", "guest", "display name")
	fs.BoolVarP(&opts.Create, "create", "c", false, "create a new room instead of joining")
	fs.StringVarP(&opts.Map, "map", "m", "garden", "map for a created room")
	fs.BoolVar(&opts.Camera, "camera", false, "publish a test pattern camera once connected")
	fs.StringVar(&opts.Chat, "chat", "", "chat message sent once connected")
	fs.StringVar(&opts.Walk, "walk", "", "keep walking: up, down, left or right")
	fs.DurationVar(&opts.Tick, "tick", time.Second/60, "tick interval")
	fs.IntVar(&opts.Cols, "cols", 32, "map columns")
	fs.IntVar(&opts.Rows, "rows", 32, "map rows")
	fs.Float64Var(&opts.Tile, "tile", 16, "tile size in world units")
	fs.IntVar(&opts.Spawn, "spawn", 0, "spawn tile index")
	fs.IntSliceVar(&opts.Hitbox, "hitbox", nil, "blocked tile indices")
	fs.StringToStringVar(&opts.Wardrobe, "wear", nil, "appearance attributes, e.g. hair=2,upper=1")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if !opts.Create && opts.Room == "" {
		return nil, fmt.Errorf("either --create or --room is required")
	}
	return opts, nil
}

func direction(name string) motion.Direction {
	switch strings.ToLower(name) {
	case "up":
		return motion.Direction{Up: true}
	case "down":
		return motion.Direction{Down: true}
	case "left":
		return motion.Direction{Left: true}
	case "right":
		return motion.Direction{Right: true}
	}
	return motion.Direction{}
}

// script plays the part of a player. It runs on the tick goroutine.
type script struct {
	opts   *options
	host   *host.Host
	logger *slog.Logger

	started     bool
	sceneLoaded bool
	greeted     bool
}

func (s *script) start() {
	s.started = true

	appearance := reconcile.DefaultAppearance()
	for key, value := range s.opts.Wardrobe {
		if !appearance.Set(key, value) {
			s.logger.Warn("unknown attribute", slog.String("key", key))
		}
	}
	s.host.SetProfile(s.opts.Name, appearance)

	if s.opts.Create {
		roomID, err := s.host.CreateRoom(s.opts.Map)
		if err != nil {
			s.logger.Error("create room", slog.String("err", err.Error()))
			return
		}
		s.logger.Info("share this room id", slog.String("room", roomID))
		return
	}

	if err := s.host.CheckRoom(s.opts.Room); err != nil {
		s.logger.Error("check room", slog.String("err", err.Error()))
	}
}

func (s *script) input() host.Input {
	in := host.Input{DT: s.opts.Tick.Seconds()}
	if !s.started {
		s.start()
		return in
	}

	switch s.host.Route() {
	case host.RouteWardrobe:
		if err := s.host.JoinRoom(""); err != nil {
			s.logger.Error("join room", slog.String("err", err.Error()))
		}
		return in

	case host.RouteLobby:
		s.sceneLoaded, s.greeted = false, false
		return in
	}

	if !s.sceneLoaded && s.host.Map() != "" {
		s.sceneLoaded = true
		s.logger.Info("loading map", slog.String("map", s.host.Map()))
		s.host.LoadScene(motion.NewGrid(s.opts.Cols, s.opts.Rows, s.opts.Tile, s.opts.Tile, s.opts.Hitbox, s.opts.Spawn))
	}

	if s.sceneLoaded && !s.greeted && s.host.Snapshot().State == session.StateConnected.String() {
		s.greeted = true
		if s.opts.Chat != "" {
			if err := s.host.SendChat(s.opts.Chat); err != nil {
				s.logger.Warn("chat", slog.String("err", err.Error()))
			}
		}
		if s.opts.Camera {
			s.host.ToggleCamera()
		}
	}

	in.Direction = direction(s.opts.Walk)
	return in
}

type run_Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Options   *options
	Host      *host.Host
	Logger    *slog.Logger
}

func run(params run_Params) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s := &script{
		opts:   params.Options,
		host:   params.Host,
		logger: params.Logger.With(slog.String("component", "script")),
	}

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				params.Host.Run(ctx, params.Options.Tick, s.input)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func transport(handle *session.Handle) media.Transport {
	return handle
}

func avatarRenderer(r *headlessRenderer) reconcile.Renderer {
	return r
}

func videoRenderer(r *headlessRenderer) host.VideoRenderer {
	return r
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fx.New(
		fx.Supply(opts),
		fx.Provide(
			transport,
			vp8.Factory,
			newHeadlessRenderer,
			avatarRenderer,
			videoRenderer,
		),

		config.Module,
		service.LoggerModule,
		service.WebrtcModule,
		service.HttpModule,
		roomservice.Module,
		session.Module,
		media.Module,
		host.Module,
		room.Module,

		fx.Invoke(run),
	).Run()
}
