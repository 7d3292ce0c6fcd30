package models

// BadgeDefinition is the static description of a badge and the roster of games it requires
type BadgeDefinition struct {
	Key                 string   `json:"key"`
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	Icon                string   `json:"icon"`
	Category            string   `json:"category"`
	GameType            string   `json:"gameType"`
	Role                string   `json:"role"`
	RequiredGameIDs     []string `json:"requiredGameIds"`
	NotificationTitle   string   `json:"-"`
	NotificationMessage string   `json:"-"`
}

// GameFamily groups games played by one role with a fixed question count
type GameFamily struct {
	GameType    string `json:"gameType"`
	Role        string `json:"role"`
	Category    string `json:"category"`
	TotalLevels int    `json:"totalLevels"`
	CoinType    string `json:"coinType"`
}

// RosterStatus is the completion state of a badge roster for one user
type RosterStatus struct {
	AllCompleted     bool     `json:"allCompleted"`
	CompletedCount   int      `json:"completedCount"`
	TotalRequired    int      `json:"totalRequired"`
	CompletedGameIDs []string `json:"completedGameIds"`
	MissingGameIDs   []string `json:"missingGameIds"`
}
