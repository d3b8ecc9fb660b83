package controllers

import (
	"log"
	"net/http"
	"time"

	"pso-monitor-service/internal/error/response"
	"pso-monitor-service/services"
	"pso-monitor-service/services/container"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// 等待对端 pong 的最长时间
	pongWait = 60 * time.Second
	// ping 间隔，必须小于 pongWait
	pingPeriod = 50 * time.Second
	// 写超时
	writeWait = 10 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域校验交给网关层
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocketFunc 返回现场端长连接的Gin处理函数
// 连接建立触发上线级联，连接关闭（无论何种原因）触发断开级联
func HandleWebSocketFunc(serviceContainer *container.ServiceContainer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := userKeyFromQuery(ctx)
		if key.IsEmpty() {
			response.ParamError(ctx, "缺少 email 或 external_id 参数")
			return
		}

		connectionService := serviceContainer.GetService("connection").(services.InterfaceConnectionService)
		if err := connectionService.HandleConnect(key); err != nil {
			respondServiceError(ctx, err)
			return
		}

		conn, err := wsUpgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			// 升级失败时连接从未建立，立即回滚上线状态
			if dErr := connectionService.HandleDisconnect(key); dErr != nil {
				log.Printf("[WebSocket] 升级失败后的断开级联出错: %v", dErr)
			}
			return
		}

		connID := uuid.New().String()
		log.Printf("[WebSocket] 连接 %s 已建立: %s", connID, key)

		go serveConnection(conn, connID, key, connectionService)
	}
}

// userKeyFromQuery 从查询参数解析用户标识
func userKeyFromQuery(ctx *gin.Context) services.UserKey {
	if email := ctx.Query("email"); email != "" {
		return services.KeyByEmail(email)
	}
	if externalID := ctx.Query("external_id"); externalID != "" {
		return services.KeyByExternalID(externalID)
	}
	return services.UserKey{}
}

// serveConnection 维持单条长连接直到对端断开
func serveConnection(conn *websocket.Conn, connID string, key services.UserKey, connectionService services.InterfaceConnectionService) {
	defer func() {
		conn.Close()
		log.Printf("[WebSocket] 连接 %s 已关闭: %s", connID, key)
		if err := connectionService.HandleDisconnect(key); err != nil {
			log.Printf("[WebSocket] 连接 %s 的断开级联出错: %v", connID, err)
		}
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	go pingLoop(conn, done)
	defer close(done)

	for {
		// 入站消息只用于保活，内容忽略
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[WebSocket] 连接 %s 异常关闭: %v", connID, err)
			}
			return
		}
	}
}

// pingLoop 周期性发送 ping 保活
func pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
