package prompt

import "time"

// Pair is a prompt together with the latest generated response. Version
// counts how many times a response was recorded; it starts at 0.
type Pair struct {
	ID        int64     `json:"id"`
	Prompt    string    `json:"prompt"`
	Response  *string   `json:"response"`
	Model     *string   `json:"model"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
