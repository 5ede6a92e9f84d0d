// Package mqtt publishes panel events to an MQTT broker and accepts remote
// encoder position updates.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Client wraps the MQTT client with the panel's topic layout:
//
//	ifpanel/<client>/button/<name>/down
//	ifpanel/<client>/button/<name>/up        {"duration":1.234}
//	ifpanel/<client>/encoder/<name>          {"position":5,"direction":1}
//	ifpanel/<client>/ping                    {"status":"ok"}
//	ifpanel/<client>/encoder/<name>/set      <- integer payload
type Client struct {
	client        paho.Client
	prefix        string
	enabled       bool
	onConnect     func()
	onDisconnect  func()
	onSetPosition func(name string, position int)
}

// Config holds MQTT connection settings.
type Config struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// Handlers holds callback functions for MQTT events.
type Handlers struct {
	OnConnect     func()
	OnDisconnect  func()
	OnSetPosition func(name string, position int)
}

// TopicPrefix returns the root of every topic for clientID.
func TopicPrefix(clientID string) string {
	return "ifpanel/" + clientID
}

// New creates a new MQTT client. Returns a disabled no-op client if host is empty.
func New(cfg Config, clientID string, handlers Handlers) (*Client, error) {
	c := &Client{
		prefix:        TopicPrefix(clientID),
		onConnect:     handlers.OnConnect,
		onDisconnect:  handlers.OnDisconnect,
		onSetPosition: handlers.OnSetPosition,
	}

	if cfg.Host == "" {
		log.Println("MQTT disabled (no host configured)")
		return c, nil
	}
	c.enabled = true

	var broker string
	var tlsConfig *tls.Config
	if cfg.CACert != "" || cfg.ClientCert != "" {
		if cfg.Port == 0 {
			cfg.Port = 8883
		}
		broker = fmt.Sprintf("ssl://%s:%d", cfg.Host, cfg.Port)
		var err error
		tlsConfig, err = buildTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("build TLS config: %w", err)
		}
	} else {
		if cfg.Port == 0 {
			cfg.Port = 1883
		}
		broker = fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)
		log.Println("MQTT using non-TLS connection")
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetKeepAlive(60 * time.Second).
		SetConnectionLostHandler(c.handleConnectionLost).
		SetOnConnectHandler(c.handleConnect).
		SetDefaultPublishHandler(c.handleMessage)
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}
	c.client = paho.NewClient(opts)

	paho.ERROR = log.New(os.Stdout, "[MQTT ERROR] ", 0)
	paho.CRITICAL = log.New(os.Stdout, "[MQTT CRIT] ", 0)
	paho.WARN = log.New(os.Stdout, "[MQTT WARN] ", 0)

	return c, nil
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates in %s", cfg.CACert)
		}
		tlsConfig.RootCAs = caPool
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Connect connects to the MQTT broker. If disabled, calls onConnect immediately.
func (c *Client) Connect() error {
	if !c.enabled {
		if c.onConnect != nil {
			c.onConnect()
		}
		return nil
	}
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect: %w", token.Error())
	}
	log.Println("MQTT connected")
	return nil
}

// Disconnect disconnects from the MQTT broker. No-op if disabled.
func (c *Client) Disconnect() {
	if !c.enabled || c.client == nil {
		return
	}
	c.client.Disconnect(250)
}

// IsEnabled returns whether MQTT is enabled.
func (c *Client) IsEnabled() bool {
	return c.enabled
}

func (c *Client) publish(topic string, payload []byte) {
	if !c.enabled {
		return
	}
	// Edge handlers call in here, so never wait on the token.
	c.client.Publish(topic, 0, false, payload)
}

func (c *Client) publishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("MQTT encode %s: %v", topic, err)
		return
	}
	c.publish(topic, payload)
}

// ButtonDown publishes a press.
func (c *Client) ButtonDown(name string) {
	c.publish(c.prefix+"/button/"+name+"/down", []byte("{}"))
}

// ButtonUp publishes a release with the time the button was held.
func (c *Client) ButtonUp(name string, held time.Duration) {
	c.publishJSON(c.prefix+"/button/"+name+"/up", struct {
		Duration float64 `json:"duration"`
	}{held.Seconds()})
}

// Turn publishes an encoder step.
func (c *Client) Turn(name string, position, direction int) {
	c.publishJSON(c.prefix+"/encoder/"+name, struct {
		Position  int `json:"position"`
		Direction int `json:"direction"`
	}{position, direction})
}

// Ping publishes a liveness message.
func (c *Client) Ping() {
	c.publish(c.prefix+"/ping", []byte(`{"status":"ok"}`))
}

// SubscribeEncoder subscribes to the set-position topic for the named encoder.
// No-op if disabled.
func (c *Client) SubscribeEncoder(name string) error {
	if !c.enabled {
		return nil
	}
	topic := c.prefix + "/encoder/" + name + "/set"
	if token := c.client.Subscribe(topic, 0, nil); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

// ParseSet extracts the encoder name and position from a set-position
// message. ok is false if the topic is not a set topic under prefix.
func ParseSet(prefix, topic string, payload []byte) (name string, position int, ok bool, err error) {
	rest, found := strings.CutPrefix(topic, prefix+"/encoder/")
	if !found {
		return "", 0, false, nil
	}
	name, found = strings.CutSuffix(rest, "/set")
	if !found || name == "" || strings.Contains(name, "/") {
		return "", 0, false, nil
	}
	position, err = strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return name, 0, true, fmt.Errorf("encoder %q position %q: %w", name, payload, err)
	}
	return name, position, true, nil
}

func (c *Client) handleConnect(client paho.Client) {
	log.Println("MQTT connection established")
	if c.onConnect != nil {
		c.onConnect()
	}
}

func (c *Client) handleConnectionLost(client paho.Client, err error) {
	log.Printf("MQTT connection lost: %v", err)
	if c.onDisconnect != nil {
		c.onDisconnect()
	}
}

func (c *Client) handleMessage(client paho.Client, msg paho.Message) {
	name, pos, ok, err := ParseSet(c.prefix, msg.Topic(), msg.Payload())
	if !ok {
		log.Printf("MQTT unexpected topic %s", msg.Topic())
		return
	}
	if err != nil {
		log.Printf("MQTT %v", err)
		return
	}
	if c.onSetPosition != nil {
		c.onSetPosition(name, pos)
	}
}
