package models

// UserProfile is the display identity resolved from the external user
// directory; the chat service never stores these fields.
type UserProfile struct {
	ID             int64  `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

// DisplayName joins first and last name for list views.
func (u UserProfile) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
