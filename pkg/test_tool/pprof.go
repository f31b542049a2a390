package testtool

import (
	"net/http"
	_ "net/http/pprof" // 匯入後會自動註冊 pprof endpoint

	"transcoding_service/pkg/config"
	"transcoding_service/pkg/logger"

	"go.uber.org/zap"
)

// StartPprof 非 production 環境時在 addr 上啟動 pprof 監控伺服器
func StartPprof(addr string) bool {
	if config.IsProduction() {
		logger.Log.Info("Production environment detected, pprof is disabled.")
		return false
	}

	go func() {
		logger.Log.Info("Starting pprof server", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Log.Warn("pprof server failed", zap.Error(err))
		}
	}()
	return true
}

// pprof 開啟後提供以下分析端點:
// 	•	/debug/pprof/goroutine → 顯示所有 Goroutines, 用來找卡住的 ffmpeg session
// 	•	/debug/pprof/heap → 顯示記憶體分配
// 	•	/debug/pprof/profile → 執行 30 秒 CPU 分析
//
// go tool pprof http://localhost:6060/debug/pprof/goroutine
