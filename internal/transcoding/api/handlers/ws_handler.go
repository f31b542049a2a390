package handlers

import (
	"context"
	"strconv"
	"time"

	"transcoding_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// RequireUpgrade reject plain http requests on websocket routes
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WatchJob 持續推送 job snapshot, job 結束後關閉連線
func (h *JobHandler) WatchJob(conn *websocket.Conn) {
	id := conn.Params("id")
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		conn.Close()
		logger.Log.Debug("websocket close", zap.String("job_id", id))
	}()

	//client發出close 或斷線時 ReadMessage 回傳 err
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.WatchInterval)
	defer ticker.Stop()

	var last string
	for {
		job, err := h.UseCase.Get(ctx, id)
		if err != nil {
			conn.WriteJSON(fiber.Map{"code": StatusCode(err), "error": err.Error()})
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}

		// 只在狀態或進度改變時推送
		key := string(job.State) + "/" + formatPercent(job.Progress)
		if key != last {
			if err := conn.WriteJSON(fiber.Map{"job": job}); err != nil {
				logger.Log.Debug("websocket write failed", zap.String("job_id", id), zap.Error(err))
				return
			}
			last = key
		}
		if job.State.IsTerminal() {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.State)),
				time.Now().Add(time.Second))
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}
