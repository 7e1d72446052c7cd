package chessdto

import "github.com/park285/cheese-vrchess/internal/domain"

// MoveRecord is the payload of player_move and other_player_move.
type MoveRecord = domain.MoveRecord
