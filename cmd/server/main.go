// cmd/server/main.go
package main

import (
	"log"

	"github.com/Corphon/MVScenePlanner/internal/app"
)

func main() {
	log.Println("🚀 启动 MVScenePlanner 服务器...")

	if err := app.Initialize(); err != nil {
		log.Fatalf("❌ 初始化失败: %v", err)
	}

	cfg := app.GetApp().GetConfig()
	log.Printf("🔗 API: http://localhost:%s/api/health", cfg.Port)
	log.Printf("🔗 WebSocket: ws://localhost:%s/ws/projects/<project_id>", cfg.Port)

	if err := app.Run(); err != nil {
		log.Fatalf("❌ 服务器异常退出: %v", err)
	}
	log.Println("✅ 服务器优雅关闭完成")
}
