// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// 前端由外部协作方托管,跨源由 CORS 层控制
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeTimeout = 10 * time.Second

// Events GET /api/v1/events — streams job events over a websocket.
// An optional ?job= query narrows the stream to one job id.
func (h *Handler) Events(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	jobFilter := c.Query("job")

	sub := h.bus.Subscribe(256)
	defer sub.Cancel()

	// drain client frames so close/ping handling works
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Cancel()
				return
			}
		}
	}()

	for ev := range sub.C {
		if jobFilter != "" && ev.JobID != jobFilter {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
