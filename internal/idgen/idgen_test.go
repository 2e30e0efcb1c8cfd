package idgen

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortable(t *testing.T) {
	base := time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)
	var names []string
	for i := 3; i >= 0; i-- {
		names = append(names, Sortable(base.Add(time.Duration(i)*time.Millisecond)))
	}
	sorted := append([]string{}, names...)
	sort.Strings(sorted)
	assert.Equal(t, names[3], sorted[0])
	assert.Equal(t, names[0], sorted[3])
	assert.NotEqual(t, New(), New())
}
