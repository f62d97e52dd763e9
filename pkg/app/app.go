// Package app assembles a kiosk from its settings: storage, collector
// client, persisted config, delivery queue, connectivity monitor, device
// services, alerts and the screen engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/dkalashnik/kiosk-survey/pkg/alert"
	"github.com/dkalashnik/kiosk-survey/pkg/api"
	"github.com/dkalashnik/kiosk-survey/pkg/bot"
	"github.com/dkalashnik/kiosk-survey/pkg/bot/telegramadapter"
	"github.com/dkalashnik/kiosk-survey/pkg/clock"
	"github.com/dkalashnik/kiosk-survey/pkg/collector"
	"github.com/dkalashnik/kiosk-survey/pkg/config"
	"github.com/dkalashnik/kiosk-survey/pkg/device"
	"github.com/dkalashnik/kiosk-survey/pkg/kiosk"
	"github.com/dkalashnik/kiosk-survey/pkg/kioskcfg"
	"github.com/dkalashnik/kiosk-survey/pkg/log"
	"github.com/dkalashnik/kiosk-survey/pkg/netwatch"
	"github.com/dkalashnik/kiosk-survey/pkg/ports/alertport"
	"github.com/dkalashnik/kiosk-survey/pkg/queue"
	"github.com/dkalashnik/kiosk-survey/pkg/record"
	"github.com/dkalashnik/kiosk-survey/pkg/storage"
	"github.com/dkalashnik/kiosk-survey/pkg/submission"
	"github.com/dkalashnik/kiosk-survey/pkg/tui"
)

// Overrides replace pieces New would otherwise build from settings.
type Overrides struct {
	Clock      clock.Clock
	Store      storage.Store
	HTTPClient *http.Client
	Notifier   alertport.Notifier
	Fullscreen device.Fullscreen
	WakeLock   device.WakeLock
	Logger     log.Printer
}

type App struct {
	Settings config.Settings
	Taxonomy *config.Taxonomy

	Store       storage.Store
	Collector   *collector.Client
	Config      *kioskcfg.Handle
	Queue       *queue.Queue
	Runner      *queue.Runner
	Submissions *submission.FireAndForget
	Monitor     *netwatch.Monitor
	Keeper      *device.Keeper
	Backlog     *alert.Backlog
	Engine      *kiosk.Engine

	logger log.Printer
}

func New(ctx context.Context, s config.Settings, o Overrides) (*App, error) {
	logger := log.OrDefault(o.Logger)
	clk := o.Clock
	if clk == nil {
		clk = clock.Real()
	}

	taxonomy, err := config.ResolveTaxonomy(s.Taxonomy)
	if err != nil {
		return nil, err
	}

	store := o.Store
	if store == nil {
		store, err = storage.Open(storage.Options{Driver: s.Storage.Driver, DSN: s.Storage.DSN, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}

	a := &App{Settings: s, Taxonomy: taxonomy, Store: store, logger: logger}

	if o.HTTPClient != nil {
		a.Collector = collector.NewWithHTTPClient(o.HTTPClient, logger)
	} else {
		a.Collector = collector.New(s.Queue.RequestTimeout, logger)
	}

	cfgStore := kioskcfg.NewStore(store, a.Collector, logger)
	a.Config = kioskcfg.Open(ctx, cfgStore, s.AppID, kioskcfg.Config{
		APIURL:   s.Defaults.APIURL,
		Site:     s.Defaults.Site,
		DeviceID: s.Defaults.DeviceID,
		PIN:      s.Defaults.PIN,
	})

	a.Queue = queue.New(store, s.AppID, queue.Options{
		Cap:      s.Queue.Cap,
		Sender:   a.Collector,
		Endpoint: a.Config,
		Logger:   logger,
	})

	a.Backlog = alert.NewBacklog(alert.BacklogOptions{
		Notifier:  a.notifier(o, logger),
		Threshold: s.Alert.BacklogThreshold,
		Cooldown:  s.Alert.Cooldown,
		Clock:     clk,
		Kind:      taxonomy.Kind,
		Identity:  a.Config,
		Logger:    logger,
	})
	a.Runner = queue.NewRunner(a.Queue, clk, s.Queue.DrainInterval, a.Backlog.Observe, logger)

	a.Monitor = netwatch.New(netwatch.Options{
		Checker:  a.Collector,
		Endpoint: a.Config,
		Clock:    clk,
		Interval: s.Netwatch.Interval,
		OnOnline: a.Runner.Kick,
		Logger:   logger,
	})

	client := submission.New(a.Collector, a.Config, a.Queue, logger)
	a.Submissions = submission.NewFireAndForget(client, s.Queue.RequestTimeout)

	fs, wl := o.Fullscreen, o.WakeLock
	if fs == nil && len(s.Device.FullscreenCmd) > 0 {
		fs = device.CommandFullscreen{Request: s.Device.FullscreenCmd, Check: s.Device.FullscreenCheckCmd}
	}
	if wl == nil && len(s.Device.WakeLockCmd) > 0 {
		wl = &device.CommandWakeLock{Argv: s.Device.WakeLockCmd, Logger: logger}
	}
	a.Keeper = device.NewKeeper(fs, wl, logger)

	a.Engine, err = kiosk.New(kiosk.Options{
		Taxonomy: taxonomy,
		Builder: &record.Builder{
			Kind:      taxonomy.Kind,
			UserAgent: s.UserAgent,
			Screen:    s.Screen,
			Clock:     clk,
			Source:    a.Config,
		},
		Submitter: a.Submissions,
		Admin:     a.Config,
		Observer:  a.Keeper,
		Status:    status{monitor: a.Monitor, queue: a.Queue},
		Clock:     clk,
		Timings: kiosk.Timings{
			ThankYou:  s.Timings.ThankYou,
			Idle:      s.Timings.Idle,
			Debounce:  s.Timings.Debounce,
			InputLock: s.Timings.InputLock,
			LongPress: s.Timings.LongPress,
		},
		Logger: logger,
	})
	if err != nil {
		if o.Store == nil {
			store.Close()
		}
		return nil, err
	}

	logger.Printf("[app] kiosk %q ready: taxonomy=%s storage=%s collector=%s", s.AppID, taxonomy.Kind, s.Storage.Driver, a.Config.Get().APIURL)
	return a, nil
}

func (a *App) notifier(o Overrides, logger log.Printer) alertport.Notifier {
	if o.Notifier != nil {
		return o.Notifier
	}
	if !a.Settings.Alert.TelegramEnabled() {
		return &alert.LogNotifier{Logger: logger}
	}
	client, err := bot.NewClient(a.Settings.Alert.Token)
	if err != nil {
		log.Warnf(logger, "[app] telegram alerts disabled: %v", err)
		return &alert.LogNotifier{Logger: logger}
	}
	adapter, err := telegramadapter.New(client, a.Settings.Alert.ChatID, logger)
	if err != nil {
		log.Warnf(logger, "[app] telegram alerts disabled: %v", err)
		return &alert.LogNotifier{Logger: logger}
	}
	return adapter
}

// status feeds the engine's connectivity chip.
type status struct {
	monitor *netwatch.Monitor
	queue   *queue.Queue
}

func (s status) Online() bool                   { return s.monitor.Online() }
func (s status) Queued(ctx context.Context) int { return s.queue.Len(ctx) }

// Handlers returns the HTTP handlers bound to this kiosk.
func (a *App) Handlers() *api.Handlers {
	return api.NewHandlers(api.Deps{
		Kiosk:      a.Engine,
		Conn:       a.Monitor,
		Drain:      a.Runner,
		Visibility: a.Keeper,
		Queue:      a.Queue,
		Logger:     a.logger,
	})
}

// Serve runs the background loops and the HTTP surface until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	srv := api.NewServer(a.Settings.Listen, api.NewRouter(a.Handlers()), a.logger)
	return a.run(ctx, srv.Run)
}

// RunTUI runs the background loops with the terminal front-end in the
// foreground. Quitting the terminal stops everything.
func (a *App) RunTUI(ctx context.Context) error {
	return a.run(ctx, func(ctx context.Context) error {
		if err := tui.Run(ctx, a.Engine, a.Keeper); err != nil {
			return err
		}
		return errStopped
	})
}

var errStopped = errors.New("front-end stopped")

func (a *App) run(ctx context.Context, frontEnd func(context.Context) error) error {
	a.Keeper.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Runner.Run(ctx) })
	g.Go(func() error { return a.Monitor.Run(ctx) })
	g.Go(func() error { return frontEnd(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, errStopped) {
		return nil
	}
	return err
}

// Close stops the engine, waits for in-flight submissions and releases
// device and storage resources.
func (a *App) Close() error {
	a.Engine.Close()
	a.Submissions.Wait()
	a.Keeper.Close()
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	a.logger.Printf("[app] kiosk %q stopped", a.Settings.AppID)
	return nil
}
