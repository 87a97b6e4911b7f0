package internal

// Mailbox 玩家的出站訊息佇列
type Mailbox interface {
	// Send 非阻塞投遞；佇列已滿或連線已關閉時返回 false，訊息被丟棄
	Send(msg []byte) bool
}

// Player 房間內的玩家，只由所屬的 Room 持有與修改
type Player struct {
	ID     string
	Name   string
	IsHost bool
	Ready  bool
	Score  int

	joinSeq uint64 // 加入順序，用於同分排序與房主遞補
	out     Mailbox
}

func (p *Player) info() PlayerInfo {
	return PlayerInfo{
		PlayerID: p.ID,
		Name:     p.Name,
		IsHost:   p.IsHost,
		Ready:    p.Ready,
		Score:    p.Score,
	}
}

func (p *Player) scoreEntry() ScoreEntry {
	return ScoreEntry{PlayerID: p.ID, Name: p.Name, Score: p.Score}
}

func (p *Player) send(msg []byte) bool {
	if p.out == nil {
		return false
	}
	return p.out.Send(msg)
}

// defaultPlayerName 未提供名稱時使用 "Player " + ID 末四碼
func defaultPlayerName(id string) string {
	if len(id) > 4 {
		id = id[len(id)-4:]
	}
	return "Player " + id
}
