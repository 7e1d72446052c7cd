package lobby

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-vrchess/internal/obslog"
	"go.uber.org/zap"
)

const DefaultLobbyID = "main"

const publishTimeout = 2 * time.Second

var (
	ErrTooManyLobbies = errf("lobby capacity reached")
	ErrInvalidLobbyID = errf("invalid lobby id")
)

// Hub owns independent coordinators keyed by lobby id.
type Hub struct {
	mu      sync.Mutex
	lobbies map[string]*Coordinator
	max     int
	base    Options
	dir     *Directory
}

// NewHub bounds the number of live lobbies by max. dir may be nil.
func NewHub(max int, base Options, dir *Directory) *Hub {
	if max <= 0 {
		max = 1
	}
	return &Hub{lobbies: make(map[string]*Coordinator), max: max, base: base, dir: dir}
}

// Lobby returns the coordinator for id, creating it on first use. Empty
// lobbies are evicted to make room when the hub is at capacity.
func (h *Hub) Lobby(id string) (*Coordinator, error) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > 64 || strings.ContainsAny(id, "/: ") {
		return nil, ErrInvalidLobbyID
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.lobbies[id]; ok {
		return c, nil
	}
	if len(h.lobbies) >= h.max {
		h.evictEmptyLocked()
	}
	if len(h.lobbies) >= h.max {
		return nil, ErrTooManyLobbies
	}
	opts := h.base
	opts.OnPhase = h.onPhase
	c := NewCoordinator(id, opts)
	h.lobbies[id] = c
	obslog.L().Info("hub_lobby_created", zap.String("lobby", id), zap.Int("lobbies", len(h.lobbies)))
	return c, nil
}

// Create opens a lobby under a fresh id.
func (h *Hub) Create() (*Coordinator, error) {
	return h.Lobby(uuid.NewString())
}

func (h *Hub) evictEmptyLocked() {
	for id, c := range h.lobbies {
		if c.retireIfEmpty() {
			delete(h.lobbies, id)
			obslog.L().Info("hub_lobby_evicted", zap.String("lobby", id))
		}
	}
}

// Snapshots lists in-process lobbies ordered by id.
func (h *Hub) Snapshots() []Snapshot {
	h.mu.Lock()
	coords := make([]*Coordinator, 0, len(h.lobbies))
	for _, c := range h.lobbies {
		coords = append(coords, c)
	}
	h.mu.Unlock()
	out := make([]Snapshot, 0, len(coords))
	for _, c := range coords {
		out = append(out, c.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// List prefers the shared directory and falls back to local state.
func (h *Hub) List(ctx context.Context) ([]LobbyInfo, error) {
	if h.dir != nil {
		return h.dir.List(ctx)
	}
	now := time.Now()
	var out []LobbyInfo
	for _, s := range h.Snapshots() {
		if s.Phase == PhaseEmpty {
			continue
		}
		out = append(out, infoFromSnapshot(s, now))
	}
	return out, nil
}

func (h *Hub) onPhase(s Snapshot) {
	if h.dir == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	var err error
	if s.Phase == PhaseEmpty {
		err = h.dir.Remove(ctx, s.ID)
	} else {
		err = h.dir.Publish(ctx, infoFromSnapshot(s, time.Now()))
	}
	if err != nil {
		obslog.L().Warn("hub_directory_error", zap.String("lobby", s.ID), zap.String("phase", string(s.Phase)), zap.Error(err))
	}
}
