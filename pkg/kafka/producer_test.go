package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordSortsHeaders(t *testing.T) {
	rec := NewRecord("repost.posts", []byte("k"), []byte(`{"a":1}`), map[string]string{
		"source":     "repost",
		"event_type": "post.created",
	})

	assert.Equal(t, "repost.posts", rec.Topic)
	assert.Equal(t, []byte("k"), rec.Key)
	require.Len(t, rec.Headers, 2)
	assert.Equal(t, "event_type", rec.Headers[0].Key)
	assert.Equal(t, "source", rec.Headers[1].Key)
	assert.Equal(t, []byte("repost"), rec.Headers[1].Value)
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(Config{}, nil)
	require.Error(t, err)
}
