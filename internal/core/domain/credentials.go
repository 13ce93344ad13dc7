package domain

import "time"

// ModelCredentials is a resolved, decrypted generation credential bundle.
type ModelCredentials struct {
	ID       string        `json:"id"`
	Endpoint string        `json:"endpoint"`
	Token    string        `json:"-"`
	Name     string        `json:"name"`
	Timeout  time.Duration `json:"timeout"`
}

// PublishCredentials is a resolved, decrypted publishing credential bundle.
type PublishCredentials struct {
	Token       string `json:"-"`
	WorkspaceID string `json:"workspace_id"`
}
