package redis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchKey(t *testing.T) {
	k := searchKey(3, "webhook", 20)
	assert.True(t, strings.HasPrefix(k, keyPrefix+"3:search:"))
	assert.Equal(t, k, searchKey(3, "webhook", 20))
	assert.NotEqual(t, k, searchKey(3, "webhook", 10))
	assert.NotEqual(t, k, searchKey(3, "webhooks", 20))
}

func TestKeysChangeWithGeneration(t *testing.T) {
	assert.NotEqual(t, graphKey(1), graphKey(2))
	assert.NotEqual(t, searchKey(1, "a", 1), searchKey(2, "a", 1))
	assert.True(t, strings.HasPrefix(graphKey(0), keyPrefix))
}

func TestStale(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want bool
	}{
		{name: "older graph", key: graphKey(1), want: true},
		{name: "older search", key: searchKey(4, "api", 20), want: true},
		{name: "current graph", key: graphKey(5), want: false},
		{name: "current search", key: searchKey(5, "api", 20), want: false},
		{name: "generation counter", key: generationKey, want: false},
		{name: "pre-generation layout", key: keyPrefix + "graph", want: true},
		{name: "foreign namespace", key: "other:1:graph", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stale(tt.key, 5))
		})
	}
}
