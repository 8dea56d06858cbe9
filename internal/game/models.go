package game

import "time"

type RoomStatus string

const (
	StatusWaiting    RoomStatus = "waiting"
	StatusInProgress RoomStatus = "in_progress"
	StatusFinished   RoomStatus = "finished"
)

// User carries a player's identity and lifetime race aggregates.
// Aggregates are mutated only when a race is finalized.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email,omitempty"`
	FirstName       string    `json:"firstName,omitempty"`
	LastName        string    `json:"lastName,omitempty"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	Username        string    `json:"username"`
	BestWpm         int       `json:"bestWpm"`
	AverageWpm      int       `json:"averageWpm"`
	AverageAccuracy float64   `json:"averageAccuracy"`
	GamesPlayed     int       `json:"gamesPlayed"`
	GamesWon        int       `json:"gamesWon"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ApplyResult folds one finished race into the user's lifetime
// aggregates: weighted running means over gamesPlayed (averageWpm
// rounded, averageAccuracy not), monotonic bestWpm, win count for
// first place. Both store implementations call this inside the
// finish transaction so the formula lives in one place.
func (u *User) ApplyResult(finalWpm int, finalAccuracy float64, won bool) {
	played := u.GamesPlayed
	u.GamesPlayed = played + 1
	if won {
		u.GamesWon++
	}
	u.AverageWpm = int((float64(u.AverageWpm*played)+float64(finalWpm))/float64(played+1) + 0.5)
	u.AverageAccuracy = (u.AverageAccuracy*float64(played) + finalAccuracy) / float64(played+1)
	if finalWpm > u.BestWpm {
		u.BestWpm = finalWpm
	}
}

type Room struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	Name           string     `json:"name"`
	OwnerID        string     `json:"ownerId"`
	MaxPlayers     int        `json:"maxPlayers"`
	CurrentPlayers int        `json:"currentPlayers"`
	Status         RoomStatus `json:"status"`
	TextContent    string     `json:"textContent"`
	Difficulty     string     `json:"difficulty"`
	Duration       int        `json:"duration"` // seconds
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Participant is a user's membership in one room, with live metrics
// overwritten by progress snapshots and terminal fields set once at
// finish time.
type Participant struct {
	ID              string     `json:"id"`
	RoomID          string     `json:"roomId"`
	UserID          string     `json:"userId"`
	CurrentWpm      int        `json:"currentWpm"`
	CurrentAccuracy float64    `json:"currentAccuracy"`
	Progress        float64    `json:"progress"` // percent of the passage typed
	CharactersTyped int        `json:"charactersTyped"`
	Errors          int        `json:"errors"`
	Finished        bool       `json:"finished"`
	FinalWpm        *int       `json:"finalWpm"`
	FinalAccuracy   *float64   `json:"finalAccuracy"`
	Placement       *int       `json:"placement"`
	JoinedAt        time.Time  `json:"joinedAt"`
	FinishedAt      *time.Time `json:"finishedAt"`
}

// GameResult is the immutable audit record written when a participant
// finishes. Never updated after insert.
type GameResult struct {
	ID              string    `json:"id"`
	RoomID          string    `json:"roomId"`
	UserID          string    `json:"userId"`
	Wpm             int       `json:"wpm"`
	Accuracy        float64   `json:"accuracy"`
	Placement       int       `json:"placement"`
	CharactersTyped int       `json:"charactersTyped"`
	Errors          int       `json:"errors"`
	Duration        int       `json:"duration"` // seconds from join to finish
	CreatedAt       time.Time `json:"createdAt"`
}

// ParticipantWithUser is the enriched participant row returned by room
// reads.
type ParticipantWithUser struct {
	Participant
	User User `json:"user"`
}

// RoomWithParticipants is a room eagerly joined with its owner and all
// participants.
type RoomWithParticipants struct {
	Room
	Owner        User                  `json:"owner"`
	Participants []ParticipantWithUser `json:"participants"`
}

// ProgressSnapshot is one client-reported metrics sample. Snapshots
// are last-write-wins; no monotonicity is assumed between calls.
type ProgressSnapshot struct {
	Wpm             int     `json:"wpm"`
	Accuracy        float64 `json:"accuracy"`
	Progress        float64 `json:"progress"`
	CharactersTyped int     `json:"charactersTyped"`
	Errors          int     `json:"errors"`
}
