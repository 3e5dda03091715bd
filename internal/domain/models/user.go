package models

import "encoding/json"

// User is the account returned by user-status/, login and registration.
// IsActive doubles as "email confirmed". Fields the client does not model
// are kept in Extra so they survive a round trip.
type User struct {
	IsActive bool
	Username string
	Email    string
	Extra    map[string]json.RawMessage
}

type userJSON struct {
	IsActive bool   `json:"is_active"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *User) UnmarshalJSON(b []byte) error {
	var known userJSON
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	delete(all, "is_active")
	delete(all, "username")
	delete(all, "email")

	*u = User{IsActive: known.IsActive, Username: known.Username, Email: known.Email}
	if len(all) > 0 {
		u.Extra = all
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(u.Extra)+3)
	for k, v := range u.Extra {
		out[k] = v
	}
	out["is_active"] = u.IsActive
	if u.Username != "" {
		out["username"] = u.Username
	}
	if u.Email != "" {
		out["email"] = u.Email
	}
	return json.Marshal(out)
}

// TokenPair is the response of the token endpoint.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
