package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"inputbid-service/internal/config"
	"inputbid-service/internal/domain/shared"
	"inputbid-service/internal/ports/outbound"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	sendBufferSize  = 100
	eventBufferSize = 100
	writeWait       = 10 * time.Second
)

var errClientStopped = errors.New("client is stopped")

// WsClient is one live session of a party
type WsClient struct {
	id         string
	party      shared.Party
	conn       *websocket.Conn
	sendChan   chan *ServerMessage
	events     chan outbound.Event
	ctx        context.Context
	cancel     context.CancelFunc
	handler    *WsHandler
	workerPool *pond.WorkerPool
	stopped    bool
	mu         sync.Mutex
	logger     zerolog.Logger
}

type WsClientParams struct {
	Party   shared.Party
	Conn    *websocket.Conn
	Handler *WsHandler
	Logger  zerolog.Logger
}

// NewClient creates a new WebSocket client
func NewClient(params WsClientParams) *WsClient {
	ctx, cancel := context.WithCancel(context.Background())

	pool := pond.New(
		config.WSMaxWorkers,
		config.WSMaxCapacity,
		pond.Context(ctx),
		pond.Strategy(pond.Balanced()),
	)

	id := uuid.New().String()
	return &WsClient{
		id:         id,
		party:      params.Party,
		conn:       params.Conn,
		sendChan:   make(chan *ServerMessage, sendBufferSize),
		events:     make(chan outbound.Event, eventBufferSize),
		ctx:        ctx,
		cancel:     cancel,
		handler:    params.Handler,
		workerPool: pool,
		logger: params.Logger.With().
			Str("client_id", id).
			Str("party", params.Party.String()).
			Logger(),
	}
}

func (client *WsClient) Start() {
	// Sessions are long lived; drop the HTTP server's read deadline.
	client.conn.SetReadDeadline(time.Time{})
	go client.messageSender()
	go client.messageReceiver()
}

func (client *WsClient) Stop() {
	client.mu.Lock()
	defer client.mu.Unlock()

	if client.stopped {
		return
	}
	client.stopped = true

	client.cancel()
	client.conn.Close()

	if client.workerPool != nil {
		client.workerPool.StopAndWait()
	}
}

// Done is closed once the session ends
func (client *WsClient) Done() <-chan struct{} {
	return client.ctx.Done()
}

// Send queues a message for the client
func (client *WsClient) Send(msg *ServerMessage) error {
	client.mu.Lock()
	if client.stopped {
		client.mu.Unlock()
		return errClientStopped
	}
	client.mu.Unlock()

	select {
	case client.sendChan <- msg:
		return nil
	case <-client.ctx.Done():
		return errClientStopped
	case <-time.After(100 * time.Millisecond):
		return fmt.Errorf("client send channel is full")
	}
}

func (client *WsClient) messageSender() {
	for {
		select {
		case msg := <-client.sendChan:
			if err := client.writeMessage(msg); err != nil {
				client.logger.Error().Err(err).Msg("Failed to send message to client")
				client.cancel()
				return
			}
		case <-client.ctx.Done():
			return
		}
	}
}

func (client *WsClient) messageReceiver() {
	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				client.logger.Warn().Err(err).Msg("WebSocket read error for client")
			} else {
				client.logger.Debug().Str("error", err.Error()).Msg("WebSocket connection closed for client")
			}
			client.cancel()
			return
		}

		client.workerPool.Submit(func() {
			if err := client.handleMessage(message); err != nil {
				client.logger.Warn().Err(err).Msg("Failed to handle client message")
				if sendErr := client.Send(NewErrorMessage(err, nil)); sendErr != nil && !errors.Is(sendErr, errClientStopped) {
					client.logger.Error().Err(sendErr).Msg("Failed to report error to client")
				}
			}
		})
	}
}

func (client *WsClient) writeMessage(msg *ServerMessage) error {
	client.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return client.conn.WriteJSON(msg)
}

func (client *WsClient) handleMessage(data []byte) error {
	msg, err := ParseClientMessage(data)
	if err != nil {
		return err
	}

	if err := msg.Validate(); err != nil {
		return err
	}

	if msg.Type == MessageTypePing {
		return client.Send(NewServerMessage(MessageTypePong))
	}

	if client.handler != nil {
		return client.handler.HandleClientMessage(client, msg)
	}
	return fmt.Errorf("handler not available")
}
