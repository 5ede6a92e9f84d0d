package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"ifpanel/button"
	"ifpanel/edge"
	"ifpanel/eventpipe"
	"ifpanel/indicator"
	"ifpanel/mqtt"
	"ifpanel/panel"
)

var myBuild string

// App holds the application state and dependencies.
type App struct {
	cfg       *Config
	panel     *panel.Panel
	mqtt      *mqtt.Client
	indicator indicator.Indicator
	pipe      *eventpipe.EventPipe
	heldMu    sync.Mutex
	holding   map[string]bool // tracked buttons currently down
	ctx       context.Context
	cancel    context.CancelFunc
}

func main() {
	fmt.Printf("ifpanel build %s\n", myBuild)

	cfgfile := flag.String("cfg", "ifpanel.cfg", "Config file")
	flag.Parse()

	f, err := os.Open(*cfgfile)
	if err != nil {
		log.Fatalf("Open config: %v", err)
	}
	cfg, err := LoadConfig(f)
	f.Close()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Shutdown complete")
}

// run owns every resource it opens and releases them on all return paths.
func run(cfg *Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := &App{cfg: cfg, ctx: ctx, cancel: cancel, holding: make(map[string]bool)}

	var err error
	app.indicator, err = indicator.New(cfg.Indicator)
	if err != nil {
		return fmt.Errorf("init indicator: %w", err)
	}
	defer app.indicator.Release()
	defer app.indicator.Shutdown()
	app.indicator.ConnectionLost()

	app.mqtt, err = mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{
		OnConnect:     app.onMQTTConnect,
		OnDisconnect:  app.indicator.ConnectionLost,
		OnSetPosition: app.setPosition,
	})
	if err != nil {
		return fmt.Errorf("init MQTT: %w", err)
	}

	src, err := edge.New(cfg.Source)
	if err != nil {
		return fmt.Errorf("init edge source: %w", err)
	}
	app.panel = panel.Open(src, panel.WithQueue(*cfg.Source.Queue))
	defer app.panel.Close()

	if err := app.register(); err != nil {
		return err
	}

	app.pipe, err = eventpipe.New(cfg.EventPipe, eventpipe.Handlers{
		OnEdge:     app.panel.Dispatch,
		OnPosition: app.panel.SetPosition,
		OnList:     app.logRegistry,
	})
	if err != nil {
		return fmt.Errorf("init event pipe: %w", err)
	}
	if app.pipe != nil {
		defer app.pipe.Close()
		go app.pipe.Start()
	}

	defer app.mqtt.Disconnect()
	go func() {
		if err := app.mqtt.Connect(); err != nil {
			log.Printf("MQTT connect: %v", err)
		}
	}()
	go app.pingSender()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	fmt.Println("Shutting down...")
	return nil
}

func (app *App) register() error {
	for _, b := range app.cfg.Buttons {
		down := app.buttonDown
		if b.TrackRelease {
			down = app.buttonDownTracked
		}
		err := app.panel.AddButton(b.Name, down, b.Pin,
			panel.Debounce(b.debounce),
			panel.ButtonIOGnd(boolOr(b.IOGnd, true)),
			panel.NormallyClosed(boolOr(b.NormallyClosed, true)))
		if err != nil {
			return fmt.Errorf("add button: %w", err)
		}
	}
	for _, e := range app.cfg.Encoders {
		name := e.Name
		err := app.panel.AddRotaryEncoder(name, func(pos, dir int) {
			app.turned(name, pos, dir)
		}, e.PinA, e.PinB, panel.EncoderIOGnd(e.GroundedCommon()))
		if err != nil {
			return fmt.Errorf("add encoder: %w", err)
		}
	}
	app.logRegistry()
	return nil
}

func (app *App) logRegistry() {
	log.Printf("Buttons: %s", strings.Join(app.panel.Buttons(), ", "))
	log.Printf("Encoders: %s", strings.Join(app.panel.Encoders(), ", "))
}

func (app *App) buttonDown(name string) button.PressResult {
	log.Printf("Button %q pressed", name)
	app.mqtt.ButtonDown(name)
	return button.NoFollowUp()
}

func (app *App) buttonDownTracked(name string) button.PressResult {
	log.Printf("Button %q down", name)
	app.mqtt.ButtonDown(name)
	app.indicator.Held(app.setHeld(name, true))
	return button.FollowUp(app.buttonUp)
}

func (app *App) buttonUp(name string, held time.Duration) {
	log.Printf("Button %q held %.3fs", name, held.Seconds())
	app.mqtt.ButtonUp(name, held)
	app.indicator.Held(app.setHeld(name, false))
}

// setHeld records whether the named button is down and returns how many
// are. A press that never sees its release is replaced by the next press of
// the same button rather than counted twice.
func (app *App) setHeld(name string, down bool) int {
	app.heldMu.Lock()
	defer app.heldMu.Unlock()
	if down {
		app.holding[name] = true
	} else {
		delete(app.holding, name)
	}
	return len(app.holding)
}

func (app *App) turned(name string, pos, dir int) {
	arrow := "-->"
	if dir < 0 {
		arrow = "<--"
	}
	log.Printf("%s %s pos %d", arrow, name, pos)
	app.mqtt.Turn(name, pos, dir)
	app.indicator.Turned()
}

func (app *App) setPosition(name string, pos int) {
	if err := app.panel.SetPosition(name, pos); err != nil {
		log.Printf("Set position: %v", err)
		return
	}
	log.Printf("Encoder %q position set to %d", name, pos)
}

func (app *App) onMQTTConnect() {
	for _, name := range app.panel.Encoders() {
		if err := app.mqtt.SubscribeEncoder(name); err != nil {
			log.Printf("Subscribe error: %v", err)
		}
	}
	app.indicator.Idle()
	app.heldMu.Lock()
	n := len(app.holding)
	app.heldMu.Unlock()
	app.indicator.Held(n)
}

func (app *App) pingSender() {
	ticker := time.NewTicker(time.Duration(app.cfg.PingSecs) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			app.mqtt.Ping()
		}
	}
}
