package utils

import "net/url"

const avatarBase = "https://api.dicebear.com/9.x/initials/svg"

// InitialsAvatar returns a generated avatar URL seeded with the user's name.
func InitialsAvatar(fullName string) string {
	q := url.Values{}
	q.Set("seed", fullName)
	q.Set("radius", "50")
	q.Set("backgroundColor", "00acc1,1e88e5,5e35b1,039be5,43a047,00897b,d81b60,ffb300")
	return avatarBase + "?" + q.Encode()
}
