package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinValue/internal/domain/models"
)

type recordingPublisher struct {
	topic string
	key   []byte
	value interface{}
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	r.topic, r.key, r.value = topic, key, value
	return nil
}

func sampleDCF() *models.DCFReport {
	return &models.DCFReport{
		ID:          "d-1",
		Ticker:      "AAPL",
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Result: models.DCFResult{
			Horizon:        2,
			GrowthRate:     0.10,
			WACC:           0.10,
			TerminalGrowth: 0.025,
			BaseFCF:        100,
			EnterpriseVal:  1566.67,
			EquityValue:    1596.67,
			IntrinsicValue: models.Float(15.9667),
			CurrentPrice:   10,
		},
	}
}

func TestKafkaResultPublisherKeysByTicker(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewKafkaResultPublisher(pub, "finvalue.results")

	require.NoError(t, p.SaveDCF(context.Background(), sampleDCF()))
	assert.Equal(t, "finvalue.results", pub.topic)
	assert.Equal(t, "AAPL", string(pub.key))

	b, err := json.Marshal(pub.value)
	require.NoError(t, err)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(b, &ev))
	assert.Equal(t, "dcf", ev["type"])
	assert.Equal(t, "d-1", ev["id"])
	assert.NotNil(t, ev["report"])
}

func TestKafkaResultPublisherComps(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewKafkaResultPublisher(pub, "results")

	rep := &models.CompsReport{ID: "c-1", Target: models.MetricRecord{Ticker: "MSFT"}}
	require.NoError(t, p.SaveComps(context.Background(), rep))
	assert.Equal(t, "MSFT", string(pub.key))
	assert.Equal(t, models.JobComps, pub.value.(ResultEvent).Type)
}

func TestDCFRowMatchesColumns(t *testing.T) {
	rep := sampleDCF()
	args, err := dcfRow(rep)
	require.NoError(t, err)

	q := insertSQL("finvalue.dcf_results", dcfColumns)
	assert.Equal(t, len(args), countPlaceholders(q))
	assert.Equal(t, uint8(2), args[3])
	assert.Equal(t, sql.NullFloat64{Float64: 15.9667, Valid: true}, args[10])
	assert.Equal(t, sql.NullFloat64{}, args[12])
}

func TestCompsRowCollectsPeersAndSkipped(t *testing.T) {
	rep := &models.CompsReport{
		ID:       "c-1",
		Target:   models.MetricRecord{Ticker: "AAPL"},
		Peers:    []models.MetricRecord{{Ticker: "MSFT"}, {Ticker: "GOOGL"}},
		Stat:     models.StatMedian,
		Warnings: []models.PeerWarning{{Ticker: "ZZZZ", Message: "not found"}},
		Valuations: map[string]models.ImpliedValuation{
			models.RulePE: {Label: models.RulePE, Implied: 62.5},
		},
	}
	args, err := compsRow(rep)
	require.NoError(t, err)

	assert.Equal(t, len(args), countPlaceholders(insertSQL("t", compsColumns)))
	assert.Equal(t, "median", args[3])
	assert.Equal(t, []string{"MSFT", "GOOGL"}, args[4])
	assert.Equal(t, []string{"ZZZZ"}, args[5])
	assert.Contains(t, args[6], `"implied":62.5`)
}

func TestSchemaUsesDatabase(t *testing.T) {
	stmts := Schema("valuations")
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[1], "valuations.comps_results")
	assert.Contains(t, stmts[2], "valuations.dcf_results")
}

func TestFromNullable(t *testing.T) {
	assert.Nil(t, fromNullable(sql.NullFloat64{}))
	assert.InDelta(t, 1.5, *fromNullable(sql.NullFloat64{Float64: 1.5, Valid: true}), 1e-12)
}

func countPlaceholders(q string) int {
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
		}
	}
	return n
}
