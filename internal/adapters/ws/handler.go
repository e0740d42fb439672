package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"inputbid-service/internal/domain/shared"
	"inputbid-service/internal/ports/inbound"
	"inputbid-service/internal/ports/outbound"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const syncTimeout = 10 * time.Second

// WsHandler manages WebSocket sessions and routes broadcast events to them
type WsHandler struct {
	clients     map[string]*WsClient // clientID -> Client
	clientsMu   sync.RWMutex
	upgrader    websocket.Upgrader
	offers      inbound.OfferService
	broadcaster outbound.Broadcaster
	logger      zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader    websocket.Upgrader
	Offers      inbound.OfferService
	Broadcaster outbound.Broadcaster
	Logger      zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:     make(map[string]*WsClient),
		upgrader:    params.Upgrader,
		offers:      params.Offers,
		broadcaster: params.Broadcaster,
		logger:      params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket upgrades the connection and subscribes the session to
// its party's audience. The party comes from the party_kind and party_id
// query parameters.
func (handler *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	party, err := shared.ParseParty(r.URL.Query().Get("party_kind"), r.URL.Query().Get("party_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handler.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		Party:   party,
		Conn:    conn,
		Handler: handler,
		Logger:  handler.logger,
	})

	audience := outbound.AudienceOf(party)
	if err := handler.broadcaster.Subscribe(r.Context(), audience, client.id, client.events); err != nil {
		handler.logger.Error().Err(err).Str("client_id", client.id).Str("party", party.String()).Msg("Failed to subscribe session to audience")
		conn.WriteJSON(NewErrorMessage(err, nil))
		client.Stop()
		return
	}

	handler.registerClient(client)
	client.Start()

	connected := NewServerMessage(MessageTypeConnected)
	connected.Data["client_id"] = client.id
	connected.Data["party_kind"] = string(party.Kind)
	connected.Data["party_id"] = party.ID.String()
	if err := client.Send(connected); err != nil {
		handler.logger.Warn().Err(err).Str("client_id", client.id).Msg("Failed to greet client")
	}

	go handler.listenForClientEvents(client)

	go func() {
		<-client.Done()
		handler.unregisterClient(client)
	}()

	handler.logger.Info().Str("client_id", client.id).Str("party", party.String()).Msg("WebSocket client connected")
}

func (handler *WsHandler) registerClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()
	handler.clients[client.id] = client
	handler.logger.Debug().Str("client_id", client.id).Int("total_clients", len(handler.clients)).Msg("Client registered")
}

func (handler *WsHandler) unregisterClient(client *WsClient) {
	handler.clientsMu.Lock()
	delete(handler.clients, client.id)
	total := len(handler.clients)
	handler.clientsMu.Unlock()

	// The broadcaster closes client.events once the last audience is gone.
	if err := handler.broadcaster.Unsubscribe(context.Background(), outbound.AudienceOf(client.party), client.id); err != nil {
		handler.logger.Error().Err(err).Str("client_id", client.id).Msg("Failed to unsubscribe client")
	}

	client.Stop()

	handler.logger.Info().Str("client_id", client.id).Str("party", client.party.String()).Int("total_clients", total).Msg("WebSocket client disconnected")
}

// listenForClientEvents forwards broadcast events to the session
func (handler *WsHandler) listenForClientEvents(client *WsClient) {
	for {
		select {
		case event, ok := <-client.events:
			if !ok {
				handler.logger.Debug().Str("client_id", client.id).Msg("Event channel closed, stopping event listener")
				return
			}
			if err := client.Send(NewEventMessage(event)); err != nil {
				handler.logger.Error().Err(err).Str("client_id", client.id).Str("event_type", string(event.Type)).Msg("Failed to send event to WebSocket client")
				continue
			}
			handler.logger.Debug().Str("client_id", client.id).Str("event_type", string(event.Type)).Int("seq", event.Seq).Msg("Sent event to WebSocket client")

		case <-client.Done():
			return
		}
	}
}

// HandleClientMessage routes a validated non-ping client message
func (handler *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeSync:
		return handler.handleSync(client, msg)
	default:
		handler.logger.Warn().Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Unknown message type from client")
		return shared.ErrUnknownMessageType
	}
}

// handleSync replies with the bids of a request the session may see, so a
// reconnecting client can catch up on missed events.
func (handler *WsHandler) handleSync(client *WsClient, msg *ClientMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	bids, err := handler.offers.ListBids(ctx, *msg.RequestID, client.party)
	if err != nil {
		handler.logger.Warn().Err(err).Str("client_id", client.id).Str("request_id", msg.RequestID.String()).Msg("Sync failed")
		return client.Send(NewErrorMessage(err, msg.RequestID))
	}

	response := NewServerMessage(MessageTypeSnapshot)
	response.RequestID = msg.RequestID
	response.Data["bids"] = bids
	return client.Send(response)
}

// GetConnectedClients returns the number of connected clients
func (handler *WsHandler) GetConnectedClients() int {
	handler.clientsMu.RLock()
	defer handler.clientsMu.RUnlock()
	return len(handler.clients)
}
