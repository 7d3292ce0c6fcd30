// Package catalog holds the static game family and badge roster configuration.
package catalog

import (
	"sort"

	"github.com/ArowuTest/calmcoins-backend/internal/models"
)

// Roles that play games
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleParent  = "parent"
)

// QuestionsPerGame is the fixed question count of every game family
const QuestionsPerGame = 5

var families = map[string]models.GameFamily{
	"student-emotions":  {GameType: "student-emotions", Role: RoleStudent, Category: "emotions", TotalLevels: QuestionsPerGame, CoinType: models.CoinTypeCalm},
	"student-stories":   {GameType: "student-stories", Role: RoleStudent, Category: "stories", TotalLevels: QuestionsPerGame, CoinType: models.CoinTypeCalm},
	"teacher-wellbeing": {GameType: "teacher-wellbeing", Role: RoleTeacher, Category: "wellbeing", TotalLevels: QuestionsPerGame, CoinType: models.CoinTypeCalm},
	"parent-connection": {GameType: "parent-connection", Role: RoleParent, Category: "connection", TotalLevels: QuestionsPerGame, CoinType: models.CoinTypeCalm},
}

var badges = []models.BadgeDefinition{
	{
		Key:                 "emotionExplorer",
		ID:                  "emotion-explorer",
		Name:                "Emotion Explorer",
		Description:         "Finished the first five feelings games",
		Icon:                "🧭",
		Category:            "emotions",
		GameType:            "student-emotions",
		Role:                RoleStudent,
		RequiredGameIDs:     []string{"emotions-1", "emotions-2", "emotions-3", "emotions-4", "emotions-5"},
		NotificationTitle:   "New badge: Emotion Explorer",
		NotificationMessage: "You explored all five feelings games. Amazing work!",
	},
	{
		Key:                 "storyKeeper",
		ID:                  "story-keeper",
		Name:                "Story Keeper",
		Description:         "Finished five calm stories",
		Icon:                "📚",
		Category:            "stories",
		GameType:            "student-stories",
		Role:                RoleStudent,
		RequiredGameIDs:     []string{"story-1", "story-2", "story-3", "story-4", "story-5"},
		NotificationTitle:   "New badge: Story Keeper",
		NotificationMessage: "You finished five calm stories!",
	},
	{
		Key:                 "calmClassroom",
		ID:                  "calm-classroom",
		Name:                "Calm Classroom",
		Description:         "Completed five classroom wellbeing activities",
		Icon:                "🌿",
		Category:            "wellbeing",
		GameType:            "teacher-wellbeing",
		Role:                RoleTeacher,
		RequiredGameIDs:     []string{"wellbeing-1", "wellbeing-2", "wellbeing-3", "wellbeing-4", "wellbeing-5"},
		NotificationTitle:   "New badge: Calm Classroom",
		NotificationMessage: "You completed five wellbeing activities for your classroom.",
	},
	{
		Key:                 "familyConnector",
		ID:                  "family-connector",
		Name:                "Family Connector",
		Description:         "Completed five family connection activities",
		Icon:                "🏡",
		Category:            "connection",
		GameType:            "parent-connection",
		Role:                RoleParent,
		RequiredGameIDs:     []string{"connection-1", "connection-2", "connection-3", "connection-4", "connection-5"},
		NotificationTitle:   "New badge: Family Connector",
		NotificationMessage: "You completed five family connection activities.",
	},
}

// Catalog resolves game families and badge definitions
type Catalog struct {
	families map[string]models.GameFamily
	badges   []models.BadgeDefinition
	byKey    map[string]int
}

// Default returns the built-in catalog
func Default() *Catalog {
	return New(families, badges)
}

// New builds a catalog from the given families and badges
func New(fams map[string]models.GameFamily, defs []models.BadgeDefinition) *Catalog {
	c := &Catalog{
		families: make(map[string]models.GameFamily, len(fams)),
		badges:   make([]models.BadgeDefinition, len(defs)),
		byKey:    make(map[string]int, len(defs)),
	}
	for k, f := range fams {
		c.families[k] = f
	}
	copy(c.badges, defs)
	for i, d := range c.badges {
		c.byKey[d.Key] = i
	}
	return c
}

// Family returns the game family for a game type
func (c *Catalog) Family(gameType string) (models.GameFamily, bool) {
	f, ok := c.families[gameType]
	return f, ok
}

// Families returns every family sorted by game type
func (c *Catalog) Families() []models.GameFamily {
	out := make([]models.GameFamily, 0, len(c.families))
	for _, f := range c.families {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameType < out[j].GameType })
	return out
}

// Badge returns the badge definition for a route key
func (c *Catalog) Badge(key string) (models.BadgeDefinition, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return models.BadgeDefinition{}, false
	}
	return c.badges[i], true
}

// Badges returns every badge definition in declaration order
func (c *Catalog) Badges() []models.BadgeDefinition {
	out := make([]models.BadgeDefinition, len(c.badges))
	copy(out, c.badges)
	return out
}

// BadgesRequiring returns the badges whose roster contains gameID
func (c *Catalog) BadgesRequiring(gameID string) []models.BadgeDefinition {
	var out []models.BadgeDefinition
	for _, d := range c.badges {
		for _, id := range d.RequiredGameIDs {
			if id == gameID {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// FamilyForGame returns the family of a game listed on a badge roster.
// Games outside every roster are unknown to the catalog.
func (c *Catalog) FamilyForGame(gameID string) (models.GameFamily, bool) {
	for _, d := range c.BadgesRequiring(gameID) {
		if f, ok := c.families[d.GameType]; ok {
			return f, true
		}
	}
	return models.GameFamily{}, false
}
