package wikidata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/logger"
)

const (
	defaultEndpoint = "https://www.wikidata.org/w/api.php"
	requestTimeout  = 15 * time.Second
)

// Client looks up mentions against Wikidata and returns the canonical label,
// the QID and known alternate names. It implements resolve.Canonicalizer.
type Client struct {
	endpoint string
	client   *http.Client
}

func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

// Canonicalize searches Wikidata for the name and, on a hit, fetches the
// entity's English label and aliases. Returns (nil, nil) when the name is
// unknown so resolution falls back to the raw mention.
func (c *Client) Canonicalize(ctx context.Context, name string, _ common.ActorType, language string) (*common.Mention, error) {
	if language == "" {
		language = "en"
	}

	qid, err := c.search(ctx, name, language)
	if err != nil {
		return nil, err
	}
	if qid == "" {
		return nil, nil
	}
	return c.entity(ctx, qid, language)
}

func (c *Client) search(ctx context.Context, name, language string) (string, error) {
	params := url.Values{
		"action":   {"wbsearchentities"},
		"search":   {name},
		"language": {language},
		"format":   {"json"},
		"limit":    {"1"},
	}
	body, err := c.get(ctx, params)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "search.0.id").String(), nil
}

func (c *Client) entity(ctx context.Context, qid, language string) (*common.Mention, error) {
	params := url.Values{
		"action": {"wbgetentities"},
		"ids":    {qid},
		"props":  {"labels|aliases|descriptions"},
		"format": {"json"},
	}
	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	root := gjson.GetBytes(body, "entities."+qid)
	if !root.Exists() {
		return nil, nil
	}

	canonical := root.Get("labels.en.value").String()
	if canonical == "" {
		canonical = root.Get("labels." + language + ".value").String()
	}
	if canonical == "" {
		return nil, nil
	}

	mention := &common.Mention{
		CanonicalName: canonical,
		WikidataQID:   qid,
	}
	if description := root.Get("descriptions.en.value").String(); description != "" {
		mention.Metadata = map[string]any{"description": description}
	}

	for _, lang := range []string{"en", language} {
		root.Get("aliases." + lang).ForEach(func(_, alias gjson.Result) bool {
			name := alias.Get("value").String()
			if name == "" || name == canonical {
				return true
			}
			mention.Aliases = append(mention.Aliases, common.Alias{
				Name:     name,
				Kind:     common.AliasKnowledge,
				Language: lang,
			})
			return true
		})
		if language == "en" {
			break
		}
	}
	if label := root.Get("labels." + language + ".value").String(); label != "" && label != canonical {
		mention.Aliases = append(mention.Aliases, common.Alias{
			Name:     label,
			Kind:     common.AliasKnowledge,
			Language: language,
		})
	}

	logger.Debug("[Wikidata] Canonicalized entity", "qid", qid, "name", canonical, "aliases", len(mention.Aliases))
	return mention, nil
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wikidata returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
