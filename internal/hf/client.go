package hf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://huggingface.co"

var ErrNotFound = errors.New("not found on hub")

// stringList accepts either a JSON string or a list of strings; model cards
// use both forms for license and datasets.
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one != "" {
			*s = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

type CardData struct {
	License  stringList `json:"license"`
	Datasets stringList `json:"datasets"`
}

type Sibling struct {
	Filename string `json:"rfilename"`
	Size     int64  `json:"size"`
}

type Model struct {
	ID          string    `json:"id"`
	Downloads   int       `json:"downloads"`
	Likes       int       `json:"likes"`
	Tags        []string  `json:"tags"`
	UsedStorage int64     `json:"usedStorage"`
	Siblings    []Sibling `json:"siblings"`
	CardData    CardData  `json:"cardData"`
}

type Dataset struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Downloads   int       `json:"downloads"`
	Tags        []string  `json:"tags"`
	Siblings    []Sibling `json:"siblings"`
	CardData    CardData  `json:"cardData"`
}

func (m *Model) License() string   { return license(m.CardData, m.Tags) }
func (d *Dataset) License() string { return license(d.CardData, d.Tags) }

// ReadmeBytes is the size of README.md, or 0 when the repository has none.
func (m *Model) ReadmeBytes() int64 { return readmeSize(m.Siblings) }

func (d *Dataset) ReadmeBytes() int64 { return readmeSize(d.Siblings) }

func license(card CardData, tags []string) string {
	if len(card.License) > 0 {
		return strings.ToLower(card.License[0])
	}
	for _, t := range tags {
		if v, ok := strings.CutPrefix(t, "license:"); ok {
			return strings.ToLower(v)
		}
	}
	return ""
}

func readmeSize(siblings []Sibling) int64 {
	for _, s := range siblings {
		if strings.EqualFold(s.Filename, "README.md") {
			return s.Size
		}
	}
	return 0
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Model(ctx context.Context, id string) (*Model, error) {
	var m Model
	if err := c.get(ctx, "/api/models/"+id+"?blobs=true", &m); err != nil {
		return nil, fmt.Errorf("getting model %s: %w", id, err)
	}
	return &m, nil
}

func (c *Client) Dataset(ctx context.Context, id string) (*Dataset, error) {
	var d Dataset
	if err := c.get(ctx, "/api/datasets/"+id+"?blobs=true", &d); err != nil {
		return nil, fmt.Errorf("getting dataset %s: %w", id, err)
	}
	return &d, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hub returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
