// CLAUDE:SUMMARY Transport-neutral endpoints shared by the MCP tools and the HTTP API.
package relocator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/relocator/kit"
	"github.com/hazyhaar/relocator/snapshot"
)

var errBadRequest = errors.New("relocator: bad request")

// maxMatchHTML caps the outer HTML returned per match.
const maxMatchHTML = 512

type generateRequest struct {
	// Either HTML + Target (an expression locating the recorded element)...
	HTML   string `json:"html,omitempty"`
	Target string `json:"target,omitempty"`
	// ...or a snapshot captured by the recorder.
	Snapshot *ElementSnapshot `json:"snapshot,omitempty"`
}

type generateResponse struct {
	Key           string      `json:"key"`
	Expression    string      `json:"expression"`
	Candidates    []Candidate `json:"candidates"`
	LowConfidence bool        `json:"low_confidence,omitempty"`
}

type queryRequest struct {
	HTML       string `json:"html"`
	Expression string `json:"expression"`
}

// MatchInfo describes one matched element.
type MatchInfo struct {
	Tag  string `json:"tag"`
	ID   string `json:"id,omitempty"`
	Text string `json:"text,omitempty"`
	HTML string `json:"html"`
}

type queryResponse struct {
	Count   int         `json:"count"`
	Matches []MatchInfo `json:"matches"`
}

type keyRequest struct {
	Key string `json:"key"`
}

type historyResponse struct {
	Key     string   `json:"key"`
	Entries []*Entry `json:"entries"`
}

func parseHTML(src string) (*html.Node, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: html is required", errBadRequest)
	}
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", errBadRequest, err)
	}
	return doc, nil
}

func (s *Service) endpoint(op string, e kit.Endpoint) kit.Endpoint {
	return kit.Logging(s.logger, op)(e)
}

func (s *Service) generateEndpoint() kit.Endpoint {
	return s.endpoint("generate", func(_ context.Context, req any) (any, error) {
		r := req.(*generateRequest)
		snap := r.Snapshot
		if snap == nil {
			if r.Target == "" {
				return nil, fmt.Errorf("%w: snapshot or html+target is required", errBadRequest)
			}
			doc, err := parseHTML(r.HTML)
			if err != nil {
				return nil, err
			}
			if snap, err = s.SnapshotOf(doc, r.Target); err != nil {
				return nil, err
			}
		}
		u := s.Generate(snap)
		return &generateResponse{
			Key:           s.Key(snap),
			Expression:    s.Prefix(u),
			Candidates:    u.Candidates,
			LowConfidence: u.LowConfidence(),
		}, nil
	})
}

func (s *Service) queryEndpoint() kit.Endpoint {
	return s.endpoint("query", func(_ context.Context, req any) (any, error) {
		r := req.(*queryRequest)
		if r.Expression == "" {
			return nil, fmt.Errorf("%w: expression is required", errBadRequest)
		}
		doc, err := parseHTML(r.HTML)
		if err != nil {
			return nil, err
		}
		nodes, err := s.QueryAll(doc, r.Expression)
		if err != nil {
			return nil, err
		}
		resp := &queryResponse{Count: len(nodes), Matches: make([]MatchInfo, 0, len(nodes))}
		for _, n := range nodes {
			resp.Matches = append(resp.Matches, DescribeMatch(n))
		}
		return resp, nil
	})
}

// DescribeMatch summarises a matched element for display.
func DescribeMatch(n *html.Node) MatchInfo {
	m := MatchInfo{
		Tag:  n.Data,
		Text: snapshot.NormalizeText(snapshot.StringValue(n)),
		HTML: snapshot.Render(n, maxMatchHTML),
	}
	for _, a := range n.Attr {
		if a.Key == "id" {
			m.ID = a.Val
		}
	}
	return m
}

func (s *Service) currentEndpoint() kit.Endpoint {
	return s.endpoint("current", func(ctx context.Context, req any) (any, error) {
		r := req.(*keyRequest)
		if r.Key == "" {
			return nil, fmt.Errorf("%w: key is required", errBadRequest)
		}
		return s.Current(ctx, r.Key)
	})
}

func (s *Service) historyEndpoint() kit.Endpoint {
	return s.endpoint("history", func(ctx context.Context, req any) (any, error) {
		r := req.(*keyRequest)
		if r.Key == "" {
			return nil, fmt.Errorf("%w: key is required", errBadRequest)
		}
		entries, err := s.History(ctx, r.Key)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []*Entry{}
		}
		return &historyResponse{Key: r.Key, Entries: entries}, nil
	})
}

func (s *Service) statsEndpoint() kit.Endpoint {
	return s.endpoint("stats", func(ctx context.Context, _ any) (any, error) {
		return s.Stats(ctx)
	})
}
