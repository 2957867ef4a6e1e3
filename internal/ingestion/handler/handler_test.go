package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/importance"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	events []kafka.Event
	err    error
}

func (p *fakeProducer) PublishBatch(_ context.Context, events []kafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

type fakeScores struct {
	stored importance.Static
}

func (s *fakeScores) Store(_ context.Context, scores importance.Static) error {
	if s.stored == nil {
		s.stored = make(importance.Static)
	}
	for id, v := range scores {
		s.stored[id] = v
	}
	return nil
}

func post(h *Handler, path, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Routes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestIngestSingleDocument(t *testing.T) {
	prod, scores := &fakeProducer{}, &fakeScores{}
	h := New(publisher.New(prod, scores))

	rec := post(h, "/api/v1/documents", `{"id":12,"title":"Gear train","abstract":"A gear","citations":[3],"importance":0.4}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, prod.events, 1)
	assert.Equal(t, "12", prod.events[0].Key)
	assert.Equal(t, indexer.Document{ID: 12, Title: "Gear train", Abstract: "A gear", Citations: []uint32{3}}, prod.events[0].Value)
	assert.Equal(t, importance.Static{12: 0.4}, scores.stored)
}

func TestIngestRejectsInvalidDocument(t *testing.T) {
	prod := &fakeProducer{}
	h := New(publisher.New(prod, nil))

	rec := post(h, "/api/v1/documents", `{"id":5,"citations":[5]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "title")
	assert.Contains(t, body.Fields, "citations")
	assert.Empty(t, prod.events)

	rec = post(h, "/api/v1/documents", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestBatch(t *testing.T) {
	prod := &fakeProducer{}
	h := New(publisher.New(prod, nil))

	batch := `{"id":1,"title":"Gear"}` + "\n\n" + `{"id":2,"abstract":"A brake"}` + "\n"
	rec := post(h, "/api/v1/documents/batch", batch)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, prod.events, 2)
	assert.JSONEq(t, `{"accepted":2,"ids":[1,2],"status":"QUEUED"}`, rec.Body.String())
}

func TestIngestBatchRejectsWholeBatch(t *testing.T) {
	prod := &fakeProducer{}
	h := New(publisher.New(prod, nil))

	rec := post(h, "/api/v1/documents/batch", `{"id":1,"title":"Gear"}`+"\n"+`{"id":0,"title":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"line":2`)
	assert.Empty(t, prod.events)
}

func TestIngestReportsPublishFailure(t *testing.T) {
	h := New(publisher.New(&fakeProducer{err: errors.New("broker down")}, nil))
	rec := post(h, "/api/v1/documents", `{"id":1,"title":"Gear"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
