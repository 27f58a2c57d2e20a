package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wisdomwalk-chat-service/internal/auth"
	"wisdomwalk-chat-service/internal/config"
	"wisdomwalk-chat-service/internal/errs"
	"wisdomwalk-chat-service/internal/models"
	"wisdomwalk-chat-service/internal/observability"
	"wisdomwalk-chat-service/internal/presence"
	"wisdomwalk-chat-service/internal/service"
)

// Gateway authenticates websocket upgrades, routes inbound frames to the
// chat service and maintains presence for the life of each connection.
type Gateway struct {
	hub      *Hub
	service  *service.ChatService
	verifier *auth.Verifier
	registry *presence.Registry
	mirror   *presence.Mirror
	cfg      config.WSConfig
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader
}

// NewGateway wires the gateway.
func NewGateway(hub *Hub, svc *service.ChatService, verifier *auth.Verifier, registry *presence.Registry, mirror *presence.Mirror, cfg config.WSConfig, log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		hub:      hub,
		service:  svc,
		verifier: verifier,
		registry: registry,
		mirror:   mirror,
		cfg:      cfg,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle upgrades GET /ws. The token comes from the Authorization header or,
// for browser clients that cannot set headers on websocket requests, the
// token query parameter.
func (g *Gateway) Handle(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	identity, err := g.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Warnw("websocket upgrade failed", "user_id", identity.UserID, "error", err)
		return
	}

	client := &Client{
		conn:    conn,
		userID:  identity.UserID,
		connID:  uuid.NewString(),
		send:    make(chan []byte, g.cfg.SendBuffer),
		done:    make(chan struct{}),
		gateway: g,
		cfg:     g.cfg,
		log:     g.log,
	}

	g.registry.Add(client.userID, client)
	g.mirror.Online(c.Request.Context(), client.userID)
	observability.IncWSActive()
	g.log.Infow("websocket connected",
		"user_id", client.userID,
		"conn_id", client.connID,
		"device_id", observability.DeviceIDFromRequest(c.Request),
		"ip", observability.IPFromRequest(c.Request),
	)

	// Subscribe to every chat the user participates in so events arrive
	// without an explicit join round-trip.
	if chatIDs, err := g.service.ChatsForUser(context.Background(), client.userID); err == nil {
		for _, chatID := range chatIDs {
			g.hub.Join(chatID, client)
		}
	} else {
		g.log.Warnw("auto-join failed", "user_id", client.userID, "error", err)
	}

	go client.writePump()
	go client.readPump()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return c.Query("token")
}

func (g *Gateway) heartbeat(client *Client) {
	g.mirror.Refresh(context.Background(), client.userID)
}

func (g *Gateway) disconnect(client *Client) {
	g.hub.Unregister(client)
	g.registry.Remove(client.userID, client)
	if g.registry.ConnectionCount(client.userID) == 0 {
		g.mirror.Offline(context.Background(), client.userID)
	}
	observability.DecWSActive()
	g.log.Infow("websocket disconnected", "user_id", client.userID, "conn_id", client.connID)
}

// dispatch routes one inbound frame. Each frame is handled on its own
// goroutine so a slow store call never blocks the read pump.
func (g *Gateway) dispatch(client *Client, payload []byte) {
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		g.log.Debugw("malformed frame", "user_id", client.userID, "error", err)
		observability.IncWSEvent("malformed", "error")
		return
	}

	go func() {
		ctx := context.Background()
		data, err := g.handle(ctx, client, f)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		observability.IncWSEvent(f.Event, outcome)
		g.acknowledge(client, f, data, err)
	}()
}

func (g *Gateway) handle(ctx context.Context, client *Client, f frame) (any, error) {
	switch f.Event {
	case ActionSendMessage:
		var p sendMessagePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, errs.Validationf("malformed payload")
		}
		msg, err := g.service.SendMessage(ctx, p.ChatID, client.userID, newMessageInput(p), true)
		if err != nil {
			return nil, err
		}
		return msg, nil

	case ActionEditMessage:
		var p editMessagePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, errs.Validationf("malformed payload")
		}
		msg, err := g.service.EditMessage(ctx, p.MessageID, client.userID, p.Content, p.EncryptedContent)
		if err != nil {
			return nil, err
		}
		return msg, nil

	case ActionDeleteMessage:
		var p deleteMessagePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, errs.Validationf("malformed payload")
		}
		_, err := g.service.DeleteMessage(ctx, p.MessageID, client.userID)
		return nil, err

	case ActionForwardMessage:
		var p forwardMessagePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, errs.Validationf("malformed payload")
		}
		msg, err := g.service.ForwardMessage(ctx, p.MessageID, p.TargetChatID, client.userID, true)
		if err != nil {
			return nil, err
		}
		return msg, nil

	case ActionToggleReaction:
		var p toggleReactionPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, errs.Validationf("malformed payload")
		}
		delta, err := g.service.ToggleReaction(ctx, p.MessageID, client.userID, p.Emoji)
		if err != nil {
			return nil, err
		}
		return delta, nil

	case ActionPinMessage:
		var p pinPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, errs.Validationf("malformed payload")
		}
		return nil, g.service.PinMessage(ctx, p.ChatID, p.MessageID, client.userID)

	case ActionUnpinMessage:
		var p pinPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, errs.Validationf("malformed payload")
		}
		return nil, g.service.UnpinMessage(ctx, p.ChatID, p.MessageID, client.userID)

	case ActionMarkRead:
		var p markReadPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, errs.Validationf("malformed payload")
		}
		return nil, g.service.MarkRead(ctx, p.ChatID, client.userID, p.UptoMessageID)

	case ActionTyping:
		var p typingPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, errs.Validationf("malformed payload")
		}
		return nil, g.service.Typing(ctx, p.ChatID, client.userID, true)

	case ActionStopTyping:
		var p typingPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, errs.Validationf("malformed payload")
		}
		return nil, g.service.Typing(ctx, p.ChatID, client.userID, false)

	case ActionJoinChat:
		var p roomPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, errs.Validationf("malformed payload")
		}
		if err := g.service.VerifyMembership(ctx, p.ChatID, client.userID); err != nil {
			return nil, err
		}
		g.hub.Join(p.ChatID, client)
		return nil, nil

	case ActionLeaveChat:
		var p roomPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, errs.Validationf("malformed payload")
		}
		g.hub.LeaveRoom(p.ChatID, client)
		return nil, nil

	default:
		return nil, errs.Validationf("unknown event %q", f.Event)
	}
}

// acknowledge replies to frames that carried a correlation id. Fire-and-forget
// frames get no reply.
func (g *Gateway) acknowledge(client *Client, f frame, data any, err error) {
	if f.ID == "" {
		return
	}

	reply := ack{Event: "ack", ID: f.ID, OK: err == nil, Data: data}
	if err != nil {
		reply.Error = err.Error()
	}
	payload, marshalErr := json.Marshal(reply)
	if marshalErr != nil {
		g.log.Errorw("ack marshal failed", "error", marshalErr)
		return
	}
	client.enqueue(payload)
}

func newMessageInput(p sendMessagePayload) models.NewMessageInput {
	input := models.NewMessageInput{
		Content:          p.Content,
		EncryptedContent: p.EncryptedContent,
		MessageType:      p.MessageType,
		ScriptureVerse:   p.ScriptureVerse,
		ScriptureRef:     p.ScriptureRef,
		ReplyToID:        p.ReplyToID,
	}
	for _, a := range p.Attachments {
		input.Attachments = append(input.Attachments, models.Attachment{
			URL:      a.URL,
			FileType: a.FileType,
			FileName: a.FileName,
		})
	}
	return input
}
