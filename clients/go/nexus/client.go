// Package nexus provides a client for the NexusNU API.
package nexus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultBaseURL is used when no server URL is given.
const DefaultBaseURL = "http://localhost:8080"

// Client is a NexusNU API client.
type Client struct {
	BaseURL    string
	ConfigDir  string
	UserID     string
	Email      string
	Token      string
	HTTPClient *http.Client
}

// Config holds the saved session.
type Config struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// Error is a non-2xx API response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("nexus error %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a new client and loads any saved session.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	configDir := os.Getenv("NEXUS_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".nexusnu")
	}

	c := &Client{
		BaseURL:    baseURL,
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	_ = c.LoadConfig()
	return c
}

// LoadConfig loads the saved session from disk.
func (c *Client) LoadConfig() error {
	data, err := os.ReadFile(filepath.Join(c.ConfigDir, "session.json"))
	if err != nil {
		return err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return err
	}

	c.UserID = config.UserID
	c.Email = config.Email
	c.Token = config.Token
	return nil
}

// SaveConfig saves the session to disk.
func (c *Client) SaveConfig() error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}

	data, _ := json.MarshalIndent(Config{UserID: c.UserID, Email: c.Email, Token: c.Token}, "", "  ")
	return os.WriteFile(filepath.Join(c.ConfigDir, "session.json"), data, 0600)
}

// doRequest performs an HTTP request and decodes the JSON response into out.
func (c *Client) doRequest(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return &Error{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// UserRef is the display subset of a user.
type UserRef struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	ProfilePicture string `json:"profile_picture"`
	Role           string `json:"role,omitempty"`
}

// User is a user profile.
type User struct {
	UserRef
	Bio            string          `json:"bio,omitempty"`
	Major          string          `json:"major,omitempty"`
	Department     string          `json:"department,omitempty"`
	Skills         []string        `json:"skills"`
	Certifications []Certification `json:"certifications"`
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role,omitempty"`
	Major      string `json:"major,omitempty"`
	Department string `json:"department,omitempty"`
}

// AuthResponse is the response from register and login.
type AuthResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
	Token   string `json:"token"`
}

// Register creates an account and saves the session.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, c.remember(&resp)
}

// Login signs in and saves the session.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	req := map[string]string{"email": email, "password": password}

	var resp AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, c.remember(&resp)
}

func (c *Client) remember(resp *AuthResponse) error {
	c.UserID = resp.User.ID
	c.Email = resp.User.Email
	c.Token = resp.Token
	return c.SaveConfig()
}

// Message is a direct message.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Sender      *UserRef  `json:"sender,omitempty"`
	Recipient   *UserRef  `json:"recipient,omitempty"`
	Content     string    `json:"content"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// SendMessage sends a direct message to recipientID.
func (c *Client) SendMessage(ctx context.Context, recipientID, content string) (*Message, error) {
	req := map[string]string{"recipient_id": recipientID, "content": content}

	var resp struct {
		Data *Message `json:"data"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/api/chat/send", req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Conversation is a conversation as seen by the caller.
type Conversation struct {
	ID          string    `json:"id"`
	OtherUser   UserRef   `json:"other_user"`
	LastMessage *Message  `json:"last_message,omitempty"`
	UnreadCount int       `json:"unread_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Conversations lists the caller's conversations, most recent first.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var resp struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/chat/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// MessagesResponse is one page of a conversation.
type MessagesResponse struct {
	Messages   []Message `json:"messages"`
	Pagination struct {
		Page          int `json:"page"`
		Limit         int `json:"limit"`
		TotalPages    int `json:"total_pages"`
		TotalMessages int `json:"total_messages"`
	} `json:"pagination"`
}

// Messages fetches one page of a conversation in chronological order.
func (c *Client) Messages(ctx context.Context, conversationID string, page int) (*MessagesResponse, error) {
	path := "/api/chat/" + url.PathEscape(conversationID)
	if page > 0 {
		path += "?page=" + strconv.Itoa(page)
	}

	var resp MessagesResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarkRead marks a received message as read.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	return c.doRequest(ctx, http.MethodPut, "/api/chat/"+url.PathEscape(messageID)+"/read", nil, nil)
}

// Skill is a skill search result.
type Skill struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchSkills returns skills matching query.
func (c *Client) SearchSkills(ctx context.Context, query string) ([]Skill, error) {
	var resp struct {
		Skills []Skill `json:"skills"`
	}
	path := "/api/skills/search?q=" + url.QueryEscape(query)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Skills, nil
}

// Certification is a credential looked up on its platform.
type Certification struct {
	Platform        string `json:"platform"`
	CertificateName string `json:"certificate_name"`
	Issuer          string `json:"issuer"`
	CompletionDate  string `json:"completion_date"`
	CredentialID    string `json:"credential_id"`
	CredentialURL   string `json:"credential_url"`
	Verified        bool   `json:"verified"`
	Notes           string `json:"notes,omitempty"`
}

// FetchCertification looks up a certificate on platform.
func (c *Client) FetchCertification(ctx context.Context, platform, id string) (*Certification, error) {
	q := url.Values{"platform": {platform}, "id": {id}}

	var resp Certification
	if err := c.doRequest(ctx, http.MethodGet, "/api/certifications/fetch?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Checks  map[string]struct {
		Status  string `json:"status"`
		Latency string `json:"latency,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"checks"`
	Timestamp string `json:"timestamp"`
}

// Health checks server health. A degraded server answers 503 with a body,
// which is returned along with the error.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return &health, &Error{StatusCode: resp.StatusCode, Message: health.Status}
	}
	return &health, nil
}
