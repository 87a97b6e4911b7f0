// Package numbermaze 是 Number Maze 多人對戰的房間伺服器。
//
// 客戶端（瀏覽器中的解謎遊戲）透過 WebSocket 連線，以 JSON 文字訊息
// 建立或加入四位數代碼的房間，由房主開始一局限時遊戲，並即時交換分數。
//
// # 房間生命週期
//
//	waiting → playing → finished
//
//   - create_room：建立者成為房主，房間進入 waiting
//   - join_room：只能在 waiting 加入
//   - start_game：房主發起，至少兩人；產生棋盤與目標值並開始倒數
//   - 倒數歸零：廣播最終排名，房間保留到所有玩家離開
//   - 房主斷線：最早加入的玩家接任房主
//
// # 協議
//
// 客戶端 → 伺服器：
//
//	{"type":"create_room","playerName":"Alice"}
//	{"type":"join_room","roomCode":"4821","playerName":"Bob"}
//	{"type":"set_ready","roomCode":"4821","ready":true}
//	{"type":"start_game","roomCode":"4821"}
//	{"type":"submit_score","roomCode":"4821","score":120}
//
// 伺服器 → 客戶端：room_created、room_joined、player_list_update、
// game_start、countdown_update、score_update、game_end、host_transferred、
// error{code,message}。
//
// # 目錄
//
//   - internal：房間狀態機、註冊表、協議、分派器、WebSocket 閘道、HTTP 運維介面、配置
//   - internal/events：房間事件發布（NATS / Redis Pub/Sub）
//   - pkg/errors：帶錯誤碼的應用錯誤
//   - pkg/logger：slog 初始化
//   - cmd/server：程式進入點
//
// # 啟動
//
//	go run ./cmd/server -config config.yaml -log-level debug
//
// 端點：
//   - ws://localhost:8080/ws（也接受根路徑 /）
//   - GET /health
//   - GET /stats
//   - GET /api/v1/rooms/{code}
package numbermaze
