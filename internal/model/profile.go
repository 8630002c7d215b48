package model

// Profile is the current user's profile, keyed 1:1 to the session identity.
// It doubles as the PUT /profiles/me payload: all three fields are always sent.
type Profile struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	Bio       string `json:"bio"`
}

// IsEmpty reports whether every editable field is blank.
func (p Profile) IsEmpty() bool {
	return p.Username == "" && p.AvatarURL == "" && p.Bio == ""
}
