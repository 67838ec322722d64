package model

import "time"

// RemoteIssue represents a GitHub issue as returned by the REST API
type RemoteIssue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	HTMLURL   string    `json:"html_url"`
	CreatedAt time.Time `json:"created_at"`
}

// RemotePullRequest represents a GitHub pull request as returned by the
// REST API
type RemotePullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
	Draft   bool   `json:"draft"`
}

// ChatMessage is one turn of an OpenAI-compatible chat exchange
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
