package internal

import (
	"math/rand/v2"
	"slices"
	"sync"
)

// OperationMode 運算模式
type OperationMode string

const (
	ModeAdd      OperationMode = "add"
	ModeSubtract OperationMode = "subtract"
	ModeMultiply OperationMode = "multiply"
	ModeDivide   OperationMode = "divide"
)

// Valid 檢查是否為已知模式
func (m OperationMode) Valid() bool {
	switch m {
	case ModeAdd, ModeSubtract, ModeMultiply, ModeDivide:
		return true
	}
	return false
}

// maxChainLength 目標值最多由幾個數字組合而成
const maxChainLength = 4

// GameData 一局遊戲的題目，開局時廣播給所有玩家
type GameData struct {
	Grid          [][]int       `json:"grid"`
	TargetSum     int           `json:"targetSum"`
	OperationMode OperationMode `json:"operationMode"`
	Countdown     int           `json:"countdown"`
}

// GameDataGenerator 產生棋盤與目標值
//
// 可被多個房間同時呼叫，內部隨機源以互斥鎖保護。
type GameDataGenerator struct {
	cfg GameConfig

	mu  sync.Mutex
	rng *rand.Rand

	// 乘除模式下可達成的目標值，依配置計算一次
	reachable []int
}

// NewGameDataGenerator 創建題目產生器，src 為 nil 時使用隨機種子
func NewGameDataGenerator(cfg GameConfig, src rand.Source) *GameDataGenerator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &GameDataGenerator{
		cfg:       cfg,
		rng:       rand.New(src),
		reachable: reachableTargets(cfg),
	}
}

// Generate 產生一局的題目
func (g *GameDataGenerator) Generate() *GameData {
	g.mu.Lock()
	defer g.mu.Unlock()

	size := g.cfg.GridSize
	grid := make([][]int, size)
	for row := range grid {
		grid[row] = make([]int, size)
		for col := range grid[row] {
			grid[row][col] = g.between(g.cfg.MinTile, g.cfg.MaxTile)
		}
	}

	return &GameData{
		Grid:          grid,
		TargetSum:     g.target(),
		OperationMode: g.cfg.OperationMode,
		Countdown:     g.cfg.Countdown,
	}
}

// target 加法直接在範圍內取值，其餘模式從可達成的值中挑選
func (g *GameDataGenerator) target() int {
	if len(g.reachable) > 0 {
		return g.reachable[g.rng.IntN(len(g.reachable))]
	}
	return g.between(g.cfg.MinTarget, g.cfg.MaxTarget)
}

// between 返回 [lo, hi] 內的隨機整數
func (g *GameDataGenerator) between(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

// reachableTargets 列出由最多四個棋子連減、相乘或連除整除可得，且落在目標範圍內的值
//
// 加法模式返回 nil：目標範圍內的值都能由棋子相加得到。
func reachableTargets(cfg GameConfig) []int {
	var step func(acc, digit int) (int, bool)
	switch cfg.OperationMode {
	case ModeSubtract:
		step = func(acc, digit int) (int, bool) {
			next := acc - digit
			return next, next >= cfg.MinTarget
		}
	case ModeMultiply:
		step = func(acc, digit int) (int, bool) {
			next := acc * digit
			return next, next <= cfg.MaxTarget
		}
	case ModeDivide:
		step = func(acc, digit int) (int, bool) {
			if acc%digit != 0 {
				return 0, false
			}
			next := acc / digit
			return next, next >= cfg.MinTarget
		}
	default:
		return nil
	}

	seen := make(map[int]struct{})
	var walk func(acc, depth int)
	walk = func(acc, depth int) {
		if acc >= cfg.MinTarget && acc <= cfg.MaxTarget {
			seen[acc] = struct{}{}
		}
		if depth == maxChainLength {
			return
		}
		for digit := cfg.MinTile; digit <= cfg.MaxTile; digit++ {
			if next, ok := step(acc, digit); ok {
				walk(next, depth+1)
			}
		}
	}
	for digit := cfg.MinTile; digit <= cfg.MaxTile; digit++ {
		walk(digit, 1)
	}

	values := make([]int, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	slices.Sort(values)
	return values
}
