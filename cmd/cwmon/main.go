package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"cwkeyer/internal/keyer"
)

// envelope mirrors the daemon's websocket message shape.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type stateView struct {
	Mode    string `json:"mode"`
	WPM     int    `json:"wpm"`
	UnitMS  int    `json:"unit_ms"`
	KeyDown bool   `json:"key_down"`
	State   string `json:"state"`
	Tune    bool   `json:"tune"`
	Line    string `json:"line"`
	Glyphs  uint64 `json:"glyphs"`
}

func main() {
	var (
		wsURL    = flag.String("ws", "ws://127.0.0.1:3002/ws", "cwkeyerd websocket URL")
		showKeys = flag.Bool("keys", false, "Print every key down/up transition")
		textOnly = flag.Bool("text", false, "Print only decoded text as a running stream")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	var writeMu sync.Mutex

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	// The server pings; extend the deadline on those too.
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}()

	p := printer{keys: *showKeys, textOnly: *textOnly}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			p.handle(message)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
	if p.textOnly {
		fmt.Println()
	}
}

type printer struct {
	keys     bool
	textOnly bool
}

func (p printer) handle(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}

	switch env.Type {
	case "state_init":
		var s stateView
		if err := json.Unmarshal(env.Data, &s); err != nil {
			log.Printf("bad state_init: %v", err)
			return
		}
		if p.textOnly {
			fmt.Print(s.Line)
			return
		}
		fmt.Printf("[STATE] mode=%s wpm=%d unit=%dms state=%s tune=%v line=%q\n",
			s.Mode, s.WPM, s.UnitMS, s.State, s.Tune, s.Line)

	case "decoded":
		var d struct {
			Text string `json:"text"`
			Line string `json:"line"`
		}
		if err := json.Unmarshal(env.Data, &d); err != nil {
			log.Printf("bad decoded: %v", err)
			return
		}
		if p.textOnly {
			fmt.Print(d.Text)
			return
		}
		if code, ok := keyer.Encode(d.Text); ok {
			fmt.Printf("[DECODED] %q %s  line=%q\n", d.Text, keyer.CodePattern(code), d.Line)
			return
		}
		fmt.Printf("[DECODED] %q  line=%q\n", d.Text, d.Line)

	case "settings_changed":
		if p.textOnly {
			return
		}
		var s struct {
			Mode string `json:"mode"`
			WPM  int    `json:"wpm"`
		}
		if err := json.Unmarshal(env.Data, &s); err != nil {
			log.Printf("bad settings_changed: %v", err)
			return
		}
		fmt.Printf("[SETTINGS] mode=%s wpm=%d\n", s.Mode, s.WPM)

	case "tune_changed":
		if p.textOnly {
			return
		}
		var t struct {
			On bool `json:"on"`
		}
		if err := json.Unmarshal(env.Data, &t); err != nil {
			log.Printf("bad tune_changed: %v", err)
			return
		}
		status := "OFF"
		if t.On {
			status = "ON"
		}
		fmt.Printf("[TUNE] %s\n", status)

	case "key_changed":
		if !p.keys || p.textOnly {
			return
		}
		var k struct {
			Down bool `json:"down"`
		}
		if err := json.Unmarshal(env.Data, &k); err != nil {
			return
		}
		ts := ""
		if env.Ts != nil {
			ts = env.Ts.Format("15:04:05.000")
		}
		edge := "UP"
		if k.Down {
			edge = "DOWN"
		}
		fmt.Printf("[KEY] %s %s\n", ts, edge)

	default:
		if !p.textOnly {
			fmt.Printf("[%s] %s\n", env.Type, string(env.Data))
		}
	}
}
