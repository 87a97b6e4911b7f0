package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 整個應用的配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Game      GameConfig      `yaml:"game"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Events    EventsConfig    `yaml:"events"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig HTTP 服務器配置
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// WebSocketConfig 連線層配置
type WebSocketConfig struct {
	ReadLimit      int64         `yaml:"read_limit"`      // 單一訊息最大位元組
	SendBuffer     int           `yaml:"send_buffer"`     // 每個連線的發送緩衝
	PingPeriod     time.Duration `yaml:"ping_period"`     // 心跳間隔
	PongWait       time.Duration `yaml:"pong_wait"`       // 讀取超時
	WriteWait      time.Duration `yaml:"write_wait"`      // 寫入超時
	RatePerSecond  float64       `yaml:"rate_per_second"` // 每秒允許訊息數
	RateBurst      int           `yaml:"rate_burst"`      // 突發容量
	AllowedOrigins []string      `yaml:"allowed_origins"` // 空表示不檢查
}

// EventsConfig 房間事件發布配置
type EventsConfig struct {
	Driver    string `yaml:"driver"` // none / nats / redis
	NATSUrl   string `yaml:"nats_url"`
	RedisAddr string `yaml:"redis_addr"`
	Prefix    string `yaml:"prefix"` // subject / channel 前綴
	QueueSize int    `yaml:"queue_size"`
}

// LogConfig 日誌配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// GameConfig 遊戲規則配置
type GameConfig struct {
	GridSize      int           `yaml:"grid_size"`
	MinTile       int           `yaml:"min_tile"`
	MaxTile       int           `yaml:"max_tile"`
	MinTarget     int           `yaml:"min_target"`
	MaxTarget     int           `yaml:"max_target"`
	OperationMode OperationMode `yaml:"operation_mode"`
	Countdown     int           `yaml:"countdown"` // 秒
	TickInterval  time.Duration `yaml:"tick_interval"`
	MinPlayers    int           `yaml:"min_players"`
	MaxRooms      int           `yaml:"max_rooms"`
}

// DefaultConfig 返回預設配置
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Game = DefaultGameConfig()

	cfg.WebSocket.ReadLimit = 4096
	cfg.WebSocket.SendBuffer = 256
	cfg.WebSocket.PingPeriod = 54 * time.Second
	cfg.WebSocket.PongWait = 60 * time.Second
	cfg.WebSocket.WriteWait = 10 * time.Second
	cfg.WebSocket.RatePerSecond = 20
	cfg.WebSocket.RateBurst = 40

	cfg.Events.Driver = "none"
	cfg.Events.NATSUrl = "nats://localhost:4222"
	cfg.Events.RedisAddr = "localhost:6379"
	cfg.Events.Prefix = "numbermaze"
	cfg.Events.QueueSize = 1024

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Log.Output = "stdout"

	return cfg
}

// DefaultGameConfig 返回預設遊戲規則（8x8 棋盤、1-9、目標 20-100、三分鐘）
func DefaultGameConfig() GameConfig {
	return GameConfig{
		GridSize:      8,
		MinTile:       1,
		MaxTile:       9,
		MinTarget:     20,
		MaxTarget:     100,
		OperationMode: ModeAdd,
		Countdown:     180,
		TickInterval:  time.Second,
		MinPlayers:    2,
		MaxRooms:      maxRoomCodes,
	}
}

// LoadConfig 載入配置
//
// 順序：預設值 → YAML 檔案（不存在時略過）→ 環境變數 → 驗證。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		// #nosec G304 - path 來自命令列參數
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// 沒有配置檔時使用預設值
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv 環境變數覆蓋（容器部署常用）
func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("GAME_COUNTDOWN"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GAME_COUNTDOWN %q: %w", v, err)
		}
		c.Game.Countdown = seconds
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("EVENTS_DRIVER"); v != "" {
		c.Events.Driver = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.Events.NATSUrl = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Events.RedisAddr = v
	}
	return nil
}

// Validate 驗證配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if err := c.Game.Validate(); err != nil {
		return err
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket.send_buffer must be positive")
	}
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return fmt.Errorf("websocket.ping_period must be shorter than pong_wait")
	}
	if c.WebSocket.RatePerSecond <= 0 || c.WebSocket.RateBurst <= 0 {
		return fmt.Errorf("websocket rate limit must be positive")
	}
	if c.Events.QueueSize <= 0 {
		return fmt.Errorf("events.queue_size must be positive")
	}
	switch c.Events.Driver {
	case "", "none", "nats", "redis":
	default:
		return fmt.Errorf("unknown events.driver: %s", c.Events.Driver)
	}
	return nil
}

// Validate 驗證遊戲規則
func (g GameConfig) Validate() error {
	if g.GridSize < 1 {
		return fmt.Errorf("game.grid_size must be positive")
	}
	if g.MinTile < 1 || g.MaxTile < g.MinTile {
		return fmt.Errorf("game tile range invalid: %d-%d", g.MinTile, g.MaxTile)
	}
	if g.MinTarget < 1 || g.MaxTarget < g.MinTarget {
		return fmt.Errorf("game target range invalid: %d-%d", g.MinTarget, g.MaxTarget)
	}
	if !g.OperationMode.Valid() {
		return fmt.Errorf("unknown game.operation_mode: %s", g.OperationMode)
	}
	if g.OperationMode != ModeAdd && len(reachableTargets(g)) == 0 {
		return fmt.Errorf("game target range %d-%d is unreachable in %s mode", g.MinTarget, g.MaxTarget, g.OperationMode)
	}
	if g.Countdown < 1 {
		return fmt.Errorf("game.countdown must be positive")
	}
	if g.TickInterval <= 0 {
		return fmt.Errorf("game.tick_interval must be positive")
	}
	if g.MinPlayers < 2 {
		return fmt.Errorf("game.min_players must be at least 2")
	}
	if g.MaxRooms < 1 || g.MaxRooms > maxRoomCodes {
		return fmt.Errorf("game.max_rooms must be within 1-%d", maxRoomCodes)
	}
	return nil
}
