package order

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPlacer struct {
	errs      []error // one per CreateOrder call, nil = success
	calls     []Request
	condErr   error
	condCalls int
}

func (p *scriptedPlacer) CreateOrder(req Request) (*Order, error) {
	p.calls = append(p.calls, req)
	if len(p.errs) == 0 {
		return &Order{ClientID: req.ClientID, Status: StatusNew}, nil
	}
	err := p.errs[0]
	p.errs = p.errs[1:]
	if err != nil {
		return nil, err
	}
	return &Order{ClientID: req.ClientID, Status: StatusNew}, nil
}

type scriptedConditionalPlacer struct {
	scriptedPlacer
}

func (p *scriptedConditionalPlacer) CreateConditionalOrder(req Request) (*Order, error) {
	p.condCalls++
	if p.condErr != nil {
		return nil, p.condErr
	}
	return &Order{ClientID: req.ClientID, Status: StatusNew}, nil
}

func TestSubmitRetriesUpToBound(t *testing.T) {
	boom := fmt.Errorf("rest 503")
	p := &scriptedPlacer{errs: []error{boom, boom, boom}}
	s := NewSubmitter(p, 3, nil)

	_, err := s.Submit(Request{Symbol: "ETHUSDT", ClientID: "A1_1"})
	require.Error(t, err)
	assert.Len(t, p.calls, 3)
	assert.ErrorIs(t, err, boom)
}

func TestSubmitSucceedsAfterTransientFailure(t *testing.T) {
	p := &scriptedPlacer{errs: []error{errors.New("timeout"), nil}}
	s := NewSubmitter(p, 3, nil)

	ord, err := s.Submit(Request{Symbol: "ETHUSDT", ClientID: "A1_2"})
	require.NoError(t, err)
	assert.Equal(t, "A1_2", ord.ClientID)
	assert.Len(t, p.calls, 2)
}

func TestSubmitStripsReduceOnlyOnceForTakeProfit(t *testing.T) {
	p := &scriptedPlacer{errs: []error{ErrReduceOnlyRejected, nil}}
	s := NewSubmitter(p, 3, nil)

	req := Request{
		Symbol:     "ETHUSDT",
		ReduceOnly: true,
		ClientID:   "AUTO_TP1_9",
		Role:       Role{Kind: RoleAutoTakeProfit, Pos: Long},
	}
	_, err := s.Submit(req)
	require.NoError(t, err)
	require.Len(t, p.calls, 2)
	assert.True(t, p.calls[0].ReduceOnly)
	assert.False(t, p.calls[1].ReduceOnly, "second attempt should drop reduceOnly")
}

func TestSubmitRefusesToStripReduceOnlyForStopLoss(t *testing.T) {
	p := &scriptedPlacer{errs: []error{ErrReduceOnlyRejected, nil}}
	s := NewSubmitter(p, 3, nil)

	req := Request{
		Symbol:     "ETHUSDT",
		ReduceOnly: true,
		ClientID:   "MANUAL_A1_SL_9",
		Role:       Role{Kind: RoleManualStopLoss, Level: 'A', Pos: Long},
	}
	_, err := s.Submit(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReduceOnlyRejected)
	// No second attempt: a stop loss must never lose its reduceOnly flag.
	assert.Len(t, p.calls, 1)
}

func TestSubmitConditionalFallsBackToUnified(t *testing.T) {
	p := &scriptedConditionalPlacer{}
	p.condErr = errors.New("algo endpoint unsupported")
	s := NewSubmitter(p, 3, nil)

	_, err := s.Submit(Request{
		Symbol:   "ETHUSDT",
		Type:     TypeTakeProfit,
		ClientID: "AUTO_TP1_3",
		Role:     Role{Kind: RoleAutoTakeProfit, Pos: Long},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.condCalls)
	assert.Len(t, p.calls, 1, "unified endpoint should be tried after conditional fails")
}

func TestSubmitConditionalPreferred(t *testing.T) {
	p := &scriptedConditionalPlacer{}
	s := NewSubmitter(p, 3, nil)

	_, err := s.Submit(Request{
		Symbol:   "ETHUSDT",
		Type:     TypeStop,
		ClientID: "AUTO_SL2_3",
		Role:     Role{Kind: RoleAutoStopLoss, Pos: Short},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.condCalls)
	assert.Empty(t, p.calls)
}
