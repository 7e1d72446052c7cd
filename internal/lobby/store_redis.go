package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const ttlLobby = 24 * time.Hour

// LobbyInfo is the published summary of one lobby.
type LobbyInfo struct {
	ID          string    `json:"id"`
	Phase       Phase     `json:"phase"`
	PlayerCount int       `json:"player_count"`
	PlayerLimit int       `json:"player_limit"`
	Automated   bool      `json:"automated,omitempty"`
	Tier        string    `json:"tier,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func infoFromSnapshot(s Snapshot, now time.Time) LobbyInfo {
	return LobbyInfo{
		ID:          s.ID,
		Phase:       s.Phase,
		PlayerCount: s.PlayerCount,
		PlayerLimit: s.PlayerLimit,
		Automated:   s.Black.Automated,
		Tier:        s.Black.Tier,
		UpdatedAt:   now,
	}
}

// Directory publishes lobby summaries to Redis so other processes can list them.
type Directory struct{ rdb *redis.Client }

func NewDirectory(rdb *redis.Client) *Directory { return &Directory{rdb: rdb} }

func (d *Directory) keyMeta(id string) string { return "vrchess:lobby:" + strings.TrimSpace(id) }
func (d *Directory) keyIndex() string         { return "vrchess:lobbies" }

func (d *Directory) Publish(ctx context.Context, info LobbyInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	pipe := d.rdb.TxPipeline()
	pipe.Set(ctx, d.keyMeta(info.ID), raw, ttlLobby)
	pipe.SAdd(ctx, d.keyIndex(), info.ID)
	pipe.Expire(ctx, d.keyIndex(), ttlLobby)
	_, err = pipe.Exec(ctx)
	return err
}

func (d *Directory) Remove(ctx context.Context, id string) error {
	pipe := d.rdb.TxPipeline()
	pipe.Del(ctx, d.keyMeta(id))
	pipe.SRem(ctx, d.keyIndex(), id)
	_, err := pipe.Exec(ctx)
	return err
}

func (d *Directory) Load(ctx context.Context, id string) (*LobbyInfo, error) {
	raw, err := d.rdb.Get(ctx, d.keyMeta(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var info LobbyInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// List returns published lobbies ordered by id. Index entries whose metadata
// expired are pruned.
func (d *Directory) List(ctx context.Context) ([]LobbyInfo, error) {
	ids, err := d.rdb.SMembers(ctx, d.keyIndex()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	out := make([]LobbyInfo, 0, len(ids))
	for _, id := range ids {
		info, err := d.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if info == nil {
			_ = d.rdb.SRem(ctx, d.keyIndex(), id).Err()
			continue
		}
		out = append(out, *info)
	}
	return out, nil
}
