// Package eventpipe accepts bench-test commands on a named pipe: injected
// edges, encoder position overrides and registry listings.
package eventpipe

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"ifpanel/edge"
)

// Config holds configuration for the event pipe.
type Config struct {
	Path string `yaml:"path"` // Path to named pipe (e.g., "/tmp/ifpanel-events")
}

// Kind is the command type read from the pipe.
type Kind int

const (
	KindEdge Kind = iota
	KindPosition
	KindList
)

// Command is one parsed pipe line.
type Command struct {
	Kind     Kind
	Edge     edge.Event
	HasTick  bool
	Name     string
	Position int
}

// Handlers holds callback functions for pipe commands.
type Handlers struct {
	OnEdge     func(edge.Event)
	OnPosition func(name string, position int) error
	OnList     func()
}

// EventPipe listens for commands on a named pipe.
type EventPipe struct {
	path     string
	handlers Handlers
	start    time.Time
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new EventPipe. Returns nil if path is empty.
func New(cfg Config, handlers Handlers) (*EventPipe, error) {
	if cfg.Path == "" {
		return nil, nil
	}

	os.Remove(cfg.Path)
	if err := syscall.Mkfifo(cfg.Path, 0666); err != nil {
		return nil, fmt.Errorf("create named pipe %s: %w", cfg.Path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &EventPipe{
		path:     cfg.Path,
		handlers: handlers,
		start:    time.Now(),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins listening for commands on the pipe.
// This should be called as a goroutine.
func (ep *EventPipe) Start() {
	log.Printf("Event pipe listening on %s", ep.path)

	for {
		select {
		case <-ep.ctx.Done():
			return
		default:
		}

		// Blocks until a writer connects.
		file, err := os.OpenFile(ep.path, os.O_RDONLY, 0)
		if err != nil {
			if ep.ctx.Err() != nil {
				return
			}
			log.Printf("Event pipe open error: %v", err)
			time.Sleep(time.Second)
			continue
		}

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			if ep.ctx.Err() != nil {
				file.Close()
				return
			}
			ep.handleLine(scanner.Text())
		}
		file.Close()
	}
}

func (ep *EventPipe) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	cmd, err := ParseLine(line)
	if err != nil {
		log.Printf("Event pipe parse error: %v", err)
		return
	}
	ep.run(cmd)
}

func (ep *EventPipe) run(cmd Command) {
	switch cmd.Kind {
	case KindEdge:
		if !cmd.HasTick {
			cmd.Edge.Tick = edge.TickAt(time.Since(ep.start))
		}
		if ep.handlers.OnEdge != nil {
			ep.handlers.OnEdge(cmd.Edge)
		}
	case KindPosition:
		if ep.handlers.OnPosition != nil {
			if err := ep.handlers.OnPosition(cmd.Name, cmd.Position); err != nil {
				log.Printf("Event pipe: %v", err)
			}
		}
	case KindList:
		if ep.handlers.OnList != nil {
			ep.handlers.OnList()
		}
	}
}

// Close stops the event pipe listener and removes the pipe.
func (ep *EventPipe) Close() error {
	ep.cancel()
	// Unblock a Start waiting in open.
	if f, err := os.OpenFile(ep.path, os.O_WRONLY|syscall.O_NONBLOCK, 0); err == nil {
		f.Close()
	}
	return os.Remove(ep.path)
}

// ParseLine parses a command line.
// Command format:
//
//	edge <pin> <0|1> [tick]    - Inject a level change
//	position <name> <n>        - Set an encoder position
//	list                       - Log registered buttons and encoders
func ParseLine(line string) (Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	switch cmd := strings.ToLower(parts[0]); cmd {
	case "edge", "pin":
		if len(parts) < 3 {
			return Command{}, fmt.Errorf("edge requires <pin> <0|1> [tick]")
		}
		pin, err := strconv.Atoi(parts[1])
		if err != nil || pin < 0 {
			return Command{}, fmt.Errorf("invalid pin: %s", parts[1])
		}
		var lvl int
		switch strings.ToLower(parts[2]) {
		case "0", "low", "false":
		case "1", "high", "true":
			lvl = 1
		default:
			return Command{}, fmt.Errorf("invalid level: %s", parts[2])
		}
		c := Command{Kind: KindEdge, Edge: edge.Event{Pin: pin, Level: lvl}}
		if len(parts) > 3 {
			tick, err := strconv.ParseUint(parts[3], 0, 32)
			if err != nil {
				return Command{}, fmt.Errorf("invalid tick: %s", parts[3])
			}
			c.Edge.Tick = edge.Tick(tick)
			c.HasTick = true
		}
		return c, nil

	case "position", "pos":
		if len(parts) < 3 {
			return Command{}, fmt.Errorf("position requires <name> <n>")
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return Command{}, fmt.Errorf("invalid position: %s", parts[2])
		}
		return Command{Kind: KindPosition, Name: parts[1], Position: n}, nil

	case "list":
		return Command{Kind: KindList}, nil

	default:
		return Command{}, fmt.Errorf("unknown command: %s", cmd)
	}
}
