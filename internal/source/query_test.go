package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchQuery(t *testing.T) {
	tests := []struct {
		question string
		want     string
	}{
		{"Will Trump win the 2028 election?", "Trump win the 2028 election"},
		{"Will Bitcoin close above $150k this year?", "Bitcoin close above $150k this"},
		{"Fed rate cut in September?", "Fed rate cut in September"},
		{"Will it rain?", "it rain"},
		{"", ""},
		{"   Will X?  ", "X"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SearchQuery(tt.question), "question=%q", tt.question)
	}
}
