package models

type Channel struct {
	BaseModel

	Alias       string          `json:"alias"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Members     []ChannelMember `json:"members,omitempty"`
	Meetings    []Meeting       `json:"meetings,omitempty"`
	AccountID   uint            `json:"account_id"`
	IsPublic    bool            `json:"is_public"`
}

const (
	PowerLevelMember    = 0
	PowerLevelModerator = 50
	PowerLevelAdmin     = 100
)

const (
	ChannelRoleMember    = "member"
	ChannelRoleModerator = "moderator"
	ChannelRoleAdmin     = "admin"
)

type ChannelMember struct {
	BaseModel

	Name string `json:"name"`
	Nick string `json:"nick"`

	ChannelID  uint `json:"channel_id"`
	AccountID  uint `json:"account_id"`
	PowerLevel int  `json:"power_level"`
}

// Role maps the numeric power level onto the named channel roles.
func (v ChannelMember) Role() string {
	switch {
	case v.PowerLevel >= PowerLevelAdmin:
		return ChannelRoleAdmin
	case v.PowerLevel >= PowerLevelModerator:
		return ChannelRoleModerator
	default:
		return ChannelRoleMember
	}
}

func (v ChannelMember) DisplayName() string {
	if len(v.Nick) > 0 {
		return v.Nick
	}
	return v.Name
}
