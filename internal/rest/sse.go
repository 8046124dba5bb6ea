package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/promptdeck/promptdeck/internal/engine"
)

// The stream endpoint tails the chunk store rather than holding the
// provider connection: reconnecting clients resume from their last chunk
// index and multiple clients can watch one generation.
const (
	// tailMaxIterations bounds one SSE connection; clients reconnect to
	// keep following a long generation.
	tailMaxIterations = 200

	// tailInterval is the poll period of the tail loop.
	tailInterval = 50 * time.Millisecond

	// tailCreationWait is how many iterations to wait for the generation
	// record to appear before reporting it missing. Submission persists
	// the record synchronously, but a reconnecting client can race a
	// database read replica.
	tailCreationWait = 50

	// tailCreationInterval is the poll period while waiting for creation.
	tailCreationInterval = 100 * time.Millisecond
)

type chunkFrame struct {
	Content    string `json:"content"`
	ChunkIndex int    `json:"chunk_index"`
}

type statusFrame struct {
	Status   engine.Status `json:"status"`
	Progress float64       `json:"progress"`
	Response string        `json:"response"`
}

// Stream tails a generation as server-sent events. Each poll emits any new
// chunks followed by a status frame; the loop ends when the generation
// reaches a terminal state or the iteration budget runs out, always closing
// with a stream_ended sentinel.
func (h *Handler) Stream(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream; charset=utf-8")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")
	}

	nextChunk := 0
	for iterations := 0; iterations < tailMaxIterations; iterations++ {
		if ctx.Err() != nil {
			return nil
		}

		gen, err := h.service.Status(ctx, id)
		if errors.Is(err, engine.ErrNotFound) && iterations < tailCreationWait {
			if !sleepCtx(ctx, tailCreationInterval) {
				return nil
			}
			continue
		}
		if err != nil {
			if !errors.Is(err, engine.ErrNotFound) {
				slog.Error("stream status read failed", "generation_id", id, "error", err)
			}
			writeFrame(resp, flusher, map[string]string{"error": "generation not found"})
			break
		}

		chunks, err := h.service.Chunks(ctx, id, nextChunk)
		if err != nil {
			slog.Warn("stream chunk read failed", "generation_id", id, "error", err)
		}
		for _, chunk := range chunks {
			writeFrame(resp, flusher, chunkFrame{Content: chunk.Content, ChunkIndex: chunk.Index})
			if chunk.Index+1 > nextChunk {
				nextChunk = chunk.Index + 1
			}
		}

		writeFrame(resp, flusher, statusFrame{
			Status:   gen.Status,
			Progress: gen.Progress,
			Response: gen.Response,
		})

		if gen.Status.Terminal() {
			slog.Info("stream finished", "generation_id", id, "status", gen.Status)
			break
		}

		if !sleepCtx(ctx, tailInterval) {
			return nil
		}
	}

	writeFrame(resp, flusher, map[string]string{"status": "stream_ended"})
	return nil
}

func writeFrame(resp *echo.Response, flusher http.Flusher, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		return
	}
	flusher.Flush()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
