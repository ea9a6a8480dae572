// Package factcheck verifies debate and comment claims against their cited
// sources: an HTTP-reachability check, an LLM-judged content match, and an
// LLM-judged logical validity check, then records one of a fixed set of
// verdicts.
package factcheck

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"agoracore/internal/models"
)

// LLMClient is the minimal surface Referee needs to judge content match and
// logical validity.
type LLMClient interface {
	Complete(ctx context.Context, model, systemPrompt, userMessage string, maxTokens int) (string, error)
}

const (
	citationFetchTimeout = 5 * time.Second
	citationBodyLimit    = 5000
	citationCacheTTL     = 10 * time.Minute
	maxRedirects         = 2
)

const contentMatchPromptTemplate = `You are a fact-checking assistant. Compare the following quote attributed to a source with the actual page content.

Claimed quote: "%s"

Actual page content (truncated):
%s

Does the page content support or contain the claimed quote? Respond ONLY with JSON: {"match": true/false, "explanation": "brief reason"}`

const logicCheckPromptTemplate = `You are a fact-checking assistant. Evaluate whether the following claim logically follows from the cited evidence.

Claim: "%s"

Citations and evidence:
%s

Does the claim logically follow from the cited evidence? Respond ONLY with JSON: {"valid": true/false, "explanation": "brief reason"}`

// Referee verifies a claim against its citations.
type Referee struct {
	LLM        LLMClient
	Model      string
	HTTPClient *http.Client
	// Cache is an optional Redis client used to avoid re-fetching the same
	// citation URL body across requests within citationCacheTTL. A nil
	// Cache or a cache error falls back to a direct fetch; verdicts never
	// depend on whether the cache was hit.
	Cache *redis.Client
	Log   *logrus.Logger
}

// NewReferee constructs a Referee. cache may be nil to disable the fetch
// cache entirely.
func NewReferee(llm LLMClient, model string, cache *redis.Client, log *logrus.Logger) *Referee {
	if log == nil {
		log = logrus.New()
	}
	client := &http.Client{
		Timeout: citationFetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return &Referee{LLM: llm, Model: model, HTTPClient: client, Cache: cache, Log: log}
}

type citationOutcome struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Accessible    bool   `json:"accessible"`
	ContentMatch  *bool  `json:"content_match"`
	Explanation   string `json:"explanation"`
}

// Verification is the full result of checking a claim against its citations.
type Verification struct {
	Verdict            models.FactcheckVerdict
	CitationURL        string
	CitationAccessible bool
	ContentMatch       bool
	LogicValid         bool
	Details            map[string]any
}

// VerifyClaim runs the three-step verification pipeline over claim and its
// citations, returning the derived verdict and supporting detail.
func (r *Referee) VerifyClaim(ctx context.Context, claim string, citations []models.Citation) Verification {
	var outcomes []citationOutcome
	allAccessible := true
	allMatch := true
	var evidence []string

	for _, c := range citations {
		body, accessible := r.fetchCitation(ctx, c.URL)
		if !accessible {
			allAccessible = false
			outcomes = append(outcomes, citationOutcome{URL: c.URL, Title: c.Title, Accessible: false, Explanation: "Source URL could not be accessed"})
			continue
		}

		match, explanation := r.checkContentMatch(ctx, c.Quote, body)
		if !match {
			allMatch = false
		}
		matchCopy := match
		outcomes = append(outcomes, citationOutcome{URL: c.URL, Title: c.Title, Accessible: true, ContentMatch: &matchCopy, Explanation: explanation})
		evidence = append(evidence, fmt.Sprintf("[%s] (%s): %s", c.Title, c.URL, c.Quote))
	}

	logicValid, logicExplanation := false, ""
	if len(evidence) > 0 {
		logicValid, logicExplanation = r.checkLogicValid(ctx, claim, strings.Join(evidence, "\n"))
	}

	verdict := models.VerdictInconclusive
	switch {
	case !allAccessible:
		verdict = models.VerdictSourceInaccessible
	case !allMatch:
		verdict = models.VerdictSourceMismatch
	case allAccessible && allMatch && logicValid:
		verdict = models.VerdictVerified
	}

	var firstURL string
	if len(citations) > 0 {
		firstURL = citations[0].URL
	}

	return Verification{
		Verdict:            verdict,
		CitationURL:        firstURL,
		CitationAccessible: allAccessible,
		ContentMatch:       allMatch,
		LogicValid:         logicValid,
		Details: map[string]any{
			"citation_results":  outcomes,
			"logic_explanation": logicExplanation,
		},
	}
}

func (r *Referee) fetchCitation(ctx context.Context, url string) (string, bool) {
	if url == "" {
		return "", false
	}
	key := cacheKey(url)
	if r.Cache != nil {
		if cached, err := r.Cache.Get(ctx, key).Result(); err == nil {
			return cached, true
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, citationFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", false
	}
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		r.Log.WithError(err).WithField("url", url).Warn("Failed to fetch citation URL")
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, citationBodyLimit))
	if err != nil {
		return "", false
	}
	text := string(body)

	if r.Cache != nil {
		if err := r.Cache.Set(ctx, key, text, citationCacheTTL).Err(); err != nil {
			r.Log.WithError(err).Debug("Failed to cache citation fetch")
		}
	}
	return text, true
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "factcheck:citation:" + hex.EncodeToString(sum[:])
}

func (r *Referee) checkContentMatch(ctx context.Context, quote, pageContent string) (bool, string) {
	if quote == "" || pageContent == "" {
		return false, ""
	}
	truncated := pageContent
	if len(truncated) > 3000 {
		truncated = truncated[:3000]
	}
	prompt := fmt.Sprintf(contentMatchPromptTemplate, quote, truncated)
	raw, err := r.LLM.Complete(ctx, r.Model, "", prompt, 200)
	if err != nil {
		r.Log.WithError(err).Warn("Content match check failed")
		return false, "Analysis failed"
	}
	var parsed struct {
		Match       bool   `json:"match"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return false, "Analysis failed"
	}
	return parsed.Match, parsed.Explanation
}

func (r *Referee) checkLogicValid(ctx context.Context, claim, evidence string) (bool, string) {
	prompt := fmt.Sprintf(logicCheckPromptTemplate, claim, evidence)
	raw, err := r.LLM.Complete(ctx, r.Model, "", prompt, 200)
	if err != nil {
		r.Log.WithError(err).Warn("Logic check failed")
		return false, "Analysis failed"
	}
	var parsed struct {
		Valid       bool   `json:"valid"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return false, "Analysis failed"
	}
	return parsed.Valid, parsed.Explanation
}
