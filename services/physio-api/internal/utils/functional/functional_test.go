package functional

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapFilterReduce(t *testing.T) {
	in := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, Map(in, strconv.Itoa))
	assert.Equal(t, []int{2, 4}, Filter(in, func(v int) bool { return v%2 == 0 }))
	assert.Equal(t, 15, Reduce(in, 0, func(acc, v int) int { return acc + v }))
}

func TestTakeAndTakeLast(t *testing.T) {
	in := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name     string
		n        int
		wantHead []int
		wantTail []int
	}{
		{name: "fewer", n: 2, wantHead: []int{1, 2}, wantTail: []int{4, 5}},
		{name: "exact", n: 5, wantHead: in, wantTail: in},
		{name: "more", n: 50, wantHead: in, wantTail: in},
		{name: "zero", n: 0, wantHead: []int{}, wantTail: []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantHead, Take(in, tt.n))
			assert.Equal(t, tt.wantTail, TakeLast(in, tt.n))
		})
	}
}

func TestKeyBy(t *testing.T) {
	type user struct {
		ID   string
		Name string
	}
	users := []user{{ID: "a", Name: "Ann"}, {ID: "b", Name: "Bob"}, {ID: "a", Name: "Amy"}}

	index := KeyBy(users, func(u user) string { return u.ID })

	assert.Len(t, index, 2)
	assert.Equal(t, "Amy", index["a"].Name)
}
