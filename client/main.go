package main

import (
	"bufio"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/wfunc/cardroom/cards"
	"github.com/wfunc/cardroom/game"
	"github.com/wfunc/cardroom/network"
)

const usage = `commands:
  create poker|blot <stake> [max]   join <room> [spectator]   leave
  sit [seat] [amount]   stand   ready
  fold | check | call | raise <to> | allin
  trump <suit>|pass   announce <card>...   play <card>`

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, v any) error {
	data, err := network.Encode(v)
	if err != nil {
		return err
	}
	packet, err := network.Frame(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	host := pflag.String("addr", "localhost:8080", "server address")
	player := pflag.String("player", "", "player id")
	pflag.Parse()
	if *player == "" {
		log.Fatal("--player is required")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws", RawQuery: "player_id=" + url.QueryEscape(*player)}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			p, err := network.Unframe(message)
			if err != nil {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			log.Printf("<- RECV (ID: %d): %s", p.MsgID, string(p.Data))
		}
	}()

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = send(c, network.MsgTypeHeartbeat, struct{}{})
			}
		}
	}()

	log.Println(usage)
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case text, ok := <-lines:
			if !ok {
				return
			}
			msgID, body, err := parse(strings.Fields(text))
			if err != nil {
				log.Println(err)
				continue
			}
			if err := send(c, msgID, body); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT (ID: %d): %s", msgID, text)
		}
	}
}

func parse(f []string) (uint16, any, error) {
	if len(f) == 0 {
		return 0, nil, errUsage
	}
	arg := func(i int) string {
		if i < len(f) {
			return f[i]
		}
		return ""
	}
	amount := func(i int) decimal.Decimal {
		d, _ := decimal.NewFromString(arg(i))
		return d
	}
	action := func(a game.Action) (uint16, any, error) {
		return network.MsgTypePlayerAction, network.ActionRequest{Action: a}, nil
	}

	switch f[0] {
	case "create":
		seats, _ := strconv.Atoi(arg(3))
		return network.MsgTypeCreateRoom, network.CreateRoomRequest{Type: game.Type(arg(1)), Stake: amount(2), MaxPlayers: seats}, nil
	case "join":
		req := network.RoomRequest{RoomID: arg(1)}
		if arg(2) == "spectator" {
			req.Role = game.RoleSpectator
		}
		return network.MsgTypeJoinRoom, req, nil
	case "leave":
		return network.MsgTypeLeaveRoom, network.RoomRequest{}, nil
	case "sit":
		req := network.RoomRequest{Amount: amount(2)}
		if seat, err := strconv.Atoi(arg(1)); err == nil {
			req.Seat = &seat
		}
		return network.MsgTypeSit, req, nil
	case "stand":
		return network.MsgTypeStandUp, network.RoomRequest{}, nil
	case "ready":
		return network.MsgTypeReady, network.RoomRequest{}, nil
	case "fold", "check", "call":
		return action(game.Action{Type: game.ActionType(f[0])})
	case "allin":
		return action(game.Action{Type: game.ActionAllIn})
	case "raise":
		return action(game.Action{Type: game.ActionRaise, Amount: amount(1)})
	case "trump":
		if arg(1) == "pass" {
			return action(game.Action{Type: game.ActionSelectTrump, Pass: true})
		}
		suit, err := cards.ParseSuit(arg(1))
		if err != nil {
			return 0, nil, err
		}
		return action(game.Action{Type: game.ActionSelectTrump, Suit: &suit})
	case "announce":
		var cs []cards.Card
		for _, code := range f[1:] {
			c, err := cards.Parse(code)
			if err != nil {
				return 0, nil, err
			}
			cs = append(cs, c)
		}
		return action(game.Action{Type: game.ActionAnnounce, Cards: cs})
	case "play":
		c, err := cards.Parse(arg(1))
		if err != nil {
			return 0, nil, err
		}
		return action(game.Action{Type: game.ActionPlayCard, Card: &c})
	}
	return 0, nil, errUsage
}

var errUsage = usageError(usage)

type usageError string

func (e usageError) Error() string { return string(e) }
