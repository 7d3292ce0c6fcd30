package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a platform user with their embedded badge collection
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Role      string             `bson:"role" json:"role"`
	CampusID  string             `bson:"campusId,omitempty" json:"campusId,omitempty"`
	Badges    []UserBadge        `bson:"badges" json:"badges"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// UserBadge is one entry of a user's badge collection.
//
// EarnedAt is the canonical marker. Older documents carry an explicit
// earned flag instead; when that flag is present it wins, otherwise the
// presence of the entry means the badge is held.
type UserBadge struct {
	BadgeID      string     `bson:"badgeId" json:"badgeId"`
	Name         string     `bson:"name" json:"name"`
	Description  string     `bson:"description,omitempty" json:"description,omitempty"`
	Icon         string     `bson:"icon,omitempty" json:"icon,omitempty"`
	Category     string     `bson:"category,omitempty" json:"category,omitempty"`
	EarnedAt     *time.Time `bson:"earnedAt,omitempty" json:"earnedAt,omitempty"`
	NewlyEarned  bool       `bson:"newlyEarned" json:"newlyEarned"`
	LegacyEarned *bool      `bson:"earned,omitempty" json:"-"`
}

// IsEarned reports whether the entry represents a held badge
func (b UserBadge) IsEarned() bool {
	if b.LegacyEarned != nil {
		return *b.LegacyEarned
	}
	return true
}

// FindBadge returns the user's entry for a badge, matching by id or display name.
// Entries that exist but are not earned are returned with held=false.
func (u *User) FindBadge(badgeID, name string) (badge *UserBadge, held bool) {
	if u == nil {
		return nil, false
	}
	for i := range u.Badges {
		b := &u.Badges[i]
		if b.BadgeID == badgeID || (name != "" && b.Name == name) {
			if b.IsEarned() {
				return b, true
			}
			badge = b
		}
	}
	return badge, false
}
