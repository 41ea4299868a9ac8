package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/pipeline"
)

const (
	streamReadTimeout  = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
)

type stateMessage struct {
	Type  string         `json:"type"`
	State pipeline.State `json:"state"`
}

type resultMessage struct {
	Type string                        `json:"type"`
	Data curriculum.GenerationResponse `json:"data"`
}

type streamError struct {
	Type string `json:"type"`
	errorBody
}

// handleGenerateStream runs one generation over a websocket. The client
// sends the request JSON as its first message; the server answers with
// every state the run enters, then a result or an error, and closes.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	caller := s.userID(r)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxBodyBytes)

	ctx := r.Context()
	readCtx, cancel := context.WithTimeout(ctx, streamReadTimeout)
	_, body, err := conn.Read(readCtx)
	cancel()
	if err != nil {
		slog.Warn("websocket read failed", "error", err)
		return
	}

	// Once the client goes away the run still completes; later writes
	// are skipped.
	gone := false
	send := func(v any) {
		if gone {
			return
		}
		writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
		defer cancel()
		if err := wsjson.Write(writeCtx, conn, v); err != nil {
			gone = true
			slog.Debug("websocket write failed", "error", err)
		}
	}

	doc, err := s.orch.Generate(ctx, body, caller, func(st pipeline.State) {
		send(stateMessage{Type: "state", State: st})
	})
	if err != nil {
		status, eb := errorResponse(err)
		if status >= http.StatusInternalServerError {
			slog.Error("stream generation failed", "code", eb.Error, "error", err)
		}
		send(streamError{Type: "error", errorBody: eb})
		conn.Close(websocket.StatusNormalClosure, eb.Error)
		return
	}

	send(resultMessage{Type: "result", Data: doc})
	conn.Close(websocket.StatusNormalClosure, "")
}
