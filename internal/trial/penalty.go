package trial

import (
	"fmt"

	"courtline/internal/domain"
)

// PenaltyBand is the narrative severity of a penalty count. It has no
// mechanical effect beyond the count itself.
type PenaltyBand string

const (
	BandNone      PenaltyBand = "none"
	BandMild      PenaltyBand = "mild"
	BandEscalated PenaltyBand = "escalated"
	BandSevere    PenaltyBand = "severe"
)

// Band maps a penalty count to its band: 1-2 mild, 3-4 escalated, 5+ severe.
func Band(count int) PenaltyBand {
	switch {
	case count <= 0:
		return BandNone
	case count <= 2:
		return BandMild
	case count <= 4:
		return BandEscalated
	default:
		return BandSevere
	}
}

func applyPenalty(s *domain.Session) {
	s.PenaltyCount++
	if s.PenaltyCount >= s.MaxPenalties {
		s.Status = domain.SessionGameOver
	}
}

// PenaltyMessage is the judge's reaction to a failed presentation.
func PenaltyMessage(count, maxPenalties int) string {
	if count >= maxPenalties {
		return fmt.Sprintf("The judge has lost all patience (%d/%d penalties). The case is lost.", count, maxPenalties)
	}
	switch Band(count) {
	case BandMild:
		return fmt.Sprintf("The judge frowns: that evidence has nothing to do with the statement. Penalty %d/%d.", count, maxPenalties)
	case BandEscalated:
		return fmt.Sprintf("The judge warns you sharply to stop wasting the court's time. Penalty %d/%d.", count, maxPenalties)
	default:
		return fmt.Sprintf("Final warning from the bench: one more mistake may end this case. Penalty %d/%d.", count, maxPenalties)
	}
}
