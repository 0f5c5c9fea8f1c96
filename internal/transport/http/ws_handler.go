package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"practice-test-service/internal/app"
	"practice-test-service/internal/domain"

	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.PracticeService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.PracticeService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	BankID           string `json:"bankId"`
	ShuffleQuestions bool   `json:"shuffleQuestions"`
	ShuffleChoices   bool   `json:"shuffleChoices"`
	Seed             *int64 `json:"seed,omitempty"`
	TimeLimitSec     int    `json:"timeLimitSec"`
}

type selectPayload struct {
	QuestionID string `json:"questionId"`
	Choices    []int  `json:"choices"`
}

type startedPayload struct {
	SessionID string                `json:"sessionId"`
	Questions []domain.QuestionView `json:"questions"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// practice use cases. One connection drives one session at a time; starting
// again discards the previous session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	var (
		sessionID   string
		unsubscribe func()
		forwardDone chan struct{}
	)
	// Cancels the subscription and waits for the forwarder to drain, so no
	// goroutine writes to send after it is closed.
	stopSubscription := func() {
		if unsubscribe != nil {
			unsubscribe()
			unsubscribe = nil
		}
		if forwardDone != nil {
			<-forwardDone
			forwardDone = nil
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.BankID == "" {
				send <- errorMessage("invalid start payload")
				continue
			}

			// A new document discards the previous session.
			stopSubscription()
			if sessionID != "" {
				h.service.Discard(r.Context(), sessionID)
				sessionID = ""
			}

			id, questions, err := h.service.Start(r.Context(), payload.BankID, app.StartOptions{
				ShuffleQuestions: payload.ShuffleQuestions,
				ShuffleChoices:   payload.ShuffleChoices,
				Seed:             payload.Seed,
				TimeLimit:        time.Duration(payload.TimeLimitSec) * time.Second,
			})
			if err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			sessionID = id

			updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
			if err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			unsubscribe = cancel
			forwardDone = make(chan struct{})
			go forwardProgress(updates, send, closeSignals, forwardDone)

			send <- outboundMessage[any]{Type: "started", Payload: startedPayload{
				SessionID: sessionID,
				Questions: questions,
			}}

		case "select":
			if sessionID == "" {
				send <- errorMessage("no active session")
				continue
			}
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid select payload")
				continue
			}
			result, err := h.service.Select(r.Context(), sessionID, payload.QuestionID, payload.Choices)
			if err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: result}

		case "grade":
			if sessionID == "" {
				send <- errorMessage("no active session")
				continue
			}
			summary, err := h.service.Grade(r.Context(), sessionID)
			if err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "graded", Payload: summary}

		case "review":
			if sessionID == "" {
				send <- errorMessage("no active session")
				continue
			}
			review, err := h.service.Review(r.Context(), sessionID)
			if err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "review", Payload: review}

		default:
			send <- errorMessage("unsupported message type")
		}
	}

	close(closeSignals)
	stopSubscription()
	close(send)
	<-writerDone
}

func forwardProgress(updates <-chan domain.Progress, send chan<- outboundMessage[any], closeSignals, done chan struct{}) {
	defer close(done)
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			select {
			case send <- outboundMessage[any]{Type: "progress", Payload: update}:
			case <-closeSignals:
				return
			}
		case <-closeSignals:
			return
		}
	}
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
