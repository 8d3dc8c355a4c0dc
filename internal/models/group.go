package models

import (
	"time"

	"gorm.io/datatypes"
)

// Group membership roles.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleMember    = "member"
)

// Group membership statuses.
const (
	MemberActive  = "active"
	MemberRemoved = "removed"
	MemberLeft    = "left"
)

// Invitation statuses. Everything after pending is terminal.
const (
	InvitationPending   = "pending"
	InvitationAccepted  = "accepted"
	InvitationDeclined  = "declined"
	InvitationCancelled = "cancelled"
)

// Group is a shared expense space owned by its creator.
type Group struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:text;not null;index"` // Display name, unique per creator among active groups.
	Description string `gorm:"type:text"`                // Optional description.

	CreatedBy uint64 `gorm:"not null;index"`        // Creator user ID.
	Creator   *User  `gorm:"foreignKey:CreatedBy"`  // Creator user.
	IsActive  bool   `gorm:"not null;default:true"` // Cleared on soft delete.

	Settings datatypes.JSONMap `gorm:"type:jsonb"` // Free-form group settings.

	Members []GroupMember `gorm:"foreignKey:GroupID"` // Membership rows.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// GroupMember is the current membership state of one user in one group.
// Status transitions reuse the row; (GroupID, UserID) is unique.
type GroupMember struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GroupID uint64 `gorm:"not null;uniqueIndex:idx_group_user"` // Group ID.
	UserID  uint64 `gorm:"not null;uniqueIndex:idx_group_user"` // Member user ID.
	User    *User  `gorm:"foreignKey:UserID"`                   // Member user.

	Role   string `gorm:"type:text;not null;default:member"` // admin, moderator or member.
	Status string `gorm:"type:text;not null;default:active"` // active, removed or left.

	InvitedBy *uint64   `gorm:""`         // Inviter user ID when joined via invitation.
	JoinedAt  time.Time `gorm:"not null"` // Join timestamp.
}

// GroupInvitation proposes group membership to a user. At most one pending
// row may exist per (GroupID, InviteeID); enforced by a partial unique
// index created in db.Migrate.
type GroupInvitation struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GroupID   uint64 `gorm:"not null;index"`       // Target group ID.
	Group     *Group `gorm:"foreignKey:GroupID"`   // Target group.
	InviterID uint64 `gorm:"not null"`             // Inviting user ID.
	Inviter   *User  `gorm:"foreignKey:InviterID"` // Inviting user.
	InviteeID uint64 `gorm:"not null;index"`       // Invited user ID.

	Status  string `gorm:"type:text;not null;default:pending"` // pending, accepted, declined or cancelled.
	Message string `gorm:"type:text"`                          // Optional invitation message.

	RespondedAt *time.Time `gorm:""`                        // Response timestamp, set once.
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
