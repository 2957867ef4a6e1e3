package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	docs []indexer.Document
	err  error
}

func (s *recordingSink) IndexDocument(_ context.Context, doc indexer.Document) error {
	if s.err != nil {
		return s.err
	}
	s.docs = append(s.docs, doc)
	return nil
}

type recordingPublisher struct {
	events []kafka.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	p.events = append(p.events, e)
	return nil
}

func TestHandleMessageIndexesDocument(t *testing.T) {
	sink := &recordingSink{}
	handler := HandleMessage(sink)
	value, err := json.Marshal(indexer.Document{ID: 42, Title: "Gear train", Citations: []uint32{7}})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), []byte("42"), value))
	require.Len(t, sink.docs, 1)
	assert.Equal(t, uint32(42), sink.docs[0].ID)
	assert.Equal(t, []uint32{7}, sink.docs[0].Citations)
}

func TestHandleMessageSkipsGarbage(t *testing.T) {
	sink := &recordingSink{}
	require.NoError(t, HandleMessage(sink)(context.Background(), nil, []byte("{not json")))
	assert.Empty(t, sink.docs)
}

func TestHandleMessagePropagatesIndexErrors(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	err := HandleMessage(sink)(context.Background(), nil, []byte(`{"id":1}`))
	assert.ErrorContains(t, err, "disk full")
}

func TestAnnounceBuild(t *testing.T) {
	p := &recordingPublisher{}
	require.NoError(t, AnnounceBuild(context.Background(), p, indexer.Summary{Generation: "gen-000004", Documents: 10, Tokens: 99}))
	require.Len(t, p.events, 1)
	assert.Equal(t, "gen-000004", p.events[0].Key)
	event, ok := p.events[0].Value.(IndexCompleteEvent)
	require.True(t, ok)
	assert.EqualValues(t, 10, event.Documents)
	assert.Equal(t, "42", DocumentEvent(indexer.Document{ID: 42}).Key)
}

func TestHandleIndexCompleteLoadsGeneration(t *testing.T) {
	var loaded []string
	handler := HandleIndexComplete(func(_ context.Context, e IndexCompleteEvent) error {
		loaded = append(loaded, e.Generation)
		return nil
	})
	value, err := json.Marshal(IndexCompleteEvent{Generation: "gen-000003", Documents: 9})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), []byte("gen-000003"), value))
	require.NoError(t, handler(context.Background(), nil, []byte("not json")))
	require.NoError(t, handler(context.Background(), nil, []byte(`{}`)))
	assert.Equal(t, []string{"gen-000003"}, loaded)

	failing := HandleIndexComplete(func(context.Context, IndexCompleteEvent) error { return errors.New("missing") })
	assert.Error(t, failing(context.Background(), nil, value))
}

func TestReadJSONL(t *testing.T) {
	sink := &recordingSink{}
	input := `{"id":1,"title":"Gear"}` + "\n\n" + `{"id":2,"abstract":"A brake","citations":[1]}` + "\n"
	n, err := ReadJSONL(context.Background(), strings.NewReader(input), sink)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []indexer.Document{
		{ID: 1, Title: "Gear"},
		{ID: 2, Abstract: "A brake", Citations: []uint32{1}},
	}, sink.docs)

	_, err = ReadJSONL(context.Background(), strings.NewReader(`{"id":1}`+"\n{oops"), &recordingSink{})
	assert.ErrorContains(t, err, "line 2")
}
