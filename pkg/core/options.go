package core

import (
	"go.uber.org/zap"

	"github.com/mnemos-ai/mnemos-go/pkg/memory"
	"github.com/mnemos-ai/mnemos-go/pkg/relevance"
)

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithClientLogger sets the logger used by batch jobs and background
// tasks. The default is zap.NewNop(), which keeps the library silent.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// rememberOptions collects per-call Remember settings.
type rememberOptions struct {
	memType  string
	tags     []string
	linkages []memory.Linkage
}

// RememberOption configures one Remember call.
type RememberOption func(*rememberOptions)

// WithType sets the memory type (e.g., "observation", "fact",
// "decision"). The default is "observation".
func WithType(memType string) RememberOption {
	return func(o *rememberOptions) {
		if memType != "" {
			o.memType = memType
		}
	}
}

// WithTags attaches tags. Tags are lowercased, deduped, and sorted before
// storage.
func WithTags(tags ...string) RememberOption {
	return func(o *rememberOptions) {
		o.tags = append(o.tags, tags...)
	}
}

// WithLinkages attaches linkages to other memories or files.
func WithLinkages(linkages ...memory.Linkage) RememberOption {
	return func(o *rememberOptions) {
		o.linkages = append(o.linkages, linkages...)
	}
}

// applyRememberOptions folds the option list into its defaults.
func applyRememberOptions(opts []RememberOption) *rememberOptions {
	ro := &rememberOptions{
		memType: memory.TypeObservation,
	}
	for _, opt := range opts {
		opt(ro)
	}
	return ro
}

// retrieveOptions collects per-call Retrieve settings.
type retrieveOptions struct {
	limit       int
	alpha       float64
	keywordOnly bool
}

// RetrieveOption configures one Retrieve call.
type RetrieveOption func(*retrieveOptions)

// WithLimit caps the number of results. The default is 10.
func WithLimit(limit int) RetrieveOption {
	return func(o *retrieveOptions) {
		if limit > 0 {
			o.limit = limit
		}
	}
}

// WithAlpha sets the keyword weight for hybrid fusion, in [0,1]. The
// default is 0.5.
func WithAlpha(alpha float64) RetrieveOption {
	return func(o *retrieveOptions) {
		o.alpha = alpha
	}
}

// WithKeywordOnly skips the vector side even when an embedder is
// configured.
func WithKeywordOnly() RetrieveOption {
	return func(o *retrieveOptions) {
		o.keywordOnly = true
	}
}

// applyRetrieveOptions folds the option list into the client's configured
// defaults.
func (c *Client) applyRetrieveOptions(opts []RetrieveOption) *retrieveOptions {
	ro := &retrieveOptions{
		limit: c.config.Retrieval.Limit,
		alpha: c.config.Retrieval.Alpha,
	}
	if ro.limit <= 0 {
		ro.limit = relevance.DefaultHybridLimit
	}
	if ro.alpha == 0 {
		ro.alpha = relevance.DefaultHybridAlpha
	}
	for _, opt := range opts {
		opt(ro)
	}
	return ro
}
