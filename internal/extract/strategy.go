package extract

import (
	"net/url"

	"perpwatch/pkg/logx"
)

// Strategy is one self-contained algorithm mapping raw page content to
// candidate records. Implementations are pure: same content, same output.
type Strategy interface {
	Name() string
	Extract(doc string, base *url.URL) []Record
}

// Chain tries strategies in order and stops at the first one that yields
// any record; later strategies are fallbacks only. It never fails: no
// match means an empty slice.
type Chain struct {
	log        logx.Logger
	strategies []Strategy
}

func NewChain(log logx.Logger, strategies ...Strategy) *Chain {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Chain{log: log, strategies: strategies}
}

// Static returns the strategy chain for statically fetched HTML.
func Static(f Filter) []Strategy {
	return []Strategy{
		tableScan{filter: f},
		blockScan{filter: f},
		stateScan{filter: f},
	}
}

// Rendered returns the chain for headless-rendered DOM content, which adds
// the text-tokenizing row scan as a last resort.
func Rendered(f Filter) []Strategy {
	return append(Static(f), renderedScan{filter: f})
}

func (c *Chain) Extract(doc string, base *url.URL) []Record {
	for _, s := range c.strategies {
		recs := s.Extract(doc, base)
		if len(recs) == 0 {
			continue
		}
		c.log.Debug("extraction strategy matched",
			logx.String("strategy", s.Name()),
			logx.Int("records", len(recs)))
		return recs
	}
	return nil
}
