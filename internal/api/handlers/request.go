package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/modelcmp/internal/aggregation"
	"github.com/wonny/modelcmp/internal/comparison"
	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/dataset"
	"github.com/wonny/modelcmp/internal/features"
	"github.com/wonny/modelcmp/internal/models"
)

// Defaults fill request fields the client left out
type Defaults struct {
	Factory     *models.Factory
	Dataset     dataset.Params
	Metric      contracts.Metric
	HistoryDays int
	Now         func() time.Time
}

// CompareRequest is the body of single-symbol comparison endpoints
type CompareRequest struct {
	Symbol string   `json:"symbol"`
	Start  string   `json:"start,omitempty"` // YYYY-MM-DD
	End    string   `json:"end,omitempty"`   // YYYY-MM-DD
	Models []string `json:"models,omitempty"`
	Metric string   `json:"metric,omitempty"`
}

// BatchRequest is the body of the batch endpoint
type BatchRequest struct {
	Symbols []string `json:"symbols"`
	Start   string   `json:"start,omitempty"`
	End     string   `json:"end,omitempty"`
	Models  []string `json:"models,omitempty"`
	Metric  string   `json:"metric,omitempty"`
}

type common struct {
	start, end time.Time
	specs      []models.Spec
	metric     contracts.Metric
	params     *dataset.Params
}

func (d Defaults) resolve(start, end string, names []string, metric string) (common, error) {
	var c common

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	c.end = now()
	if end != "" {
		t, err := time.Parse(features.DateLayout, end)
		if err != nil {
			return c, fmt.Errorf("%w: invalid 'end' date (expected YYYY-MM-DD)", contracts.ErrInvalidInput)
		}
		c.end = t
	}
	c.start = c.end.AddDate(0, 0, -d.HistoryDays)
	if start != "" {
		t, err := time.Parse(features.DateLayout, start)
		if err != nil {
			return c, fmt.Errorf("%w: invalid 'start' date (expected YYYY-MM-DD)", contracts.ErrInvalidInput)
		}
		c.start = t
	}

	specs, err := d.Factory.Select(names...)
	if err != nil {
		return c, err
	}
	c.specs = specs

	c.metric = d.Metric
	if metric != "" {
		m, err := contracts.ParseMetric(metric)
		if err != nil {
			return c, err
		}
		c.metric = m
	}

	params := d.Dataset
	c.params = &params
	return c, nil
}

func (d Defaults) compareRequest(req CompareRequest) (comparison.Request, error) {
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		return comparison.Request{}, fmt.Errorf("%w: symbol is required", contracts.ErrInvalidInput)
	}
	c, err := d.resolve(req.Start, req.End, req.Models, req.Metric)
	if err != nil {
		return comparison.Request{}, err
	}
	return comparison.Request{
		Symbol:     symbol,
		Start:      c.start,
		End:        c.end,
		Specs:      c.specs,
		Dataset:    c.params,
		BestMetric: c.metric,
	}, nil
}

func (d Defaults) batchRequest(req BatchRequest) (aggregation.BatchRequest, error) {
	if len(req.Symbols) == 0 {
		return aggregation.BatchRequest{}, fmt.Errorf("%w: symbols are required", contracts.ErrInvalidInput)
	}
	c, err := d.resolve(req.Start, req.End, req.Models, req.Metric)
	if err != nil {
		return aggregation.BatchRequest{}, err
	}
	return aggregation.BatchRequest{
		Symbols:    req.Symbols,
		Start:      c.start,
		End:        c.end,
		Specs:      c.specs,
		Dataset:    c.params,
		BestMetric: c.metric,
	}, nil
}
