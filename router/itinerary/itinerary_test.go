package itinerary_test

import (
	"testing"

	"git.fiblab.net/sim/planner/router/itinerary"
	"git.fiblab.net/sim/planner/router/transit"
	"github.com/stretchr/testify/assert"
)

func TestItineraryDerived(t *testing.T) {
	it := itinerary.New([]*itinerary.Leg{
		{Mode: transit.MODE_WALK, StartTime: 0, EndTime: 100, Distance: 120, GeneralizedCost: 200},
		{Mode: transit.MODE_FLEX, StartTime: 100, EndTime: 700, Distance: 3000, GeneralizedCost: 720},
		{Mode: transit.MODE_BUS, StartTime: 800, EndTime: 1200, Distance: 4000, GeneralizedCost: 560},
		{Mode: transit.MODE_WALK, StartTime: 1200, EndTime: 1260, Distance: 70, GeneralizedCost: 120},
	})
	assert.Equal(t, 0, it.StartTime())
	assert.Equal(t, 1260, it.EndTime())
	assert.Equal(t, 1260, it.Duration())
	assert.Equal(t, 1600, it.GeneralizedCost)
	assert.Equal(t, 1, it.NumberOfTransfers())
	assert.False(t, it.IsWalkOnly())
	assert.False(t, it.IsStreetOnly())
	assert.True(t, it.HasFlex())
	assert.Equal(t, 190.0, it.NonTransitDistance())

	it.AddNotice("walk-only")
	it.AddNotice("walk-only")
	assert.Equal(t, []string{"walk-only"}, it.Notices)
	assert.True(t, it.IsFlagged())
}

func TestStreetOnly(t *testing.T) {
	walk := itinerary.New([]*itinerary.Leg{{Mode: transit.MODE_WALK, StartTime: 0, EndTime: 600}})
	assert.True(t, walk.IsWalkOnly())
	assert.True(t, walk.IsStreetOnly())
	assert.Equal(t, 0, walk.NumberOfTransfers())

	car := itinerary.New([]*itinerary.Leg{{Mode: transit.MODE_CAR, StartTime: 0, EndTime: 300}})
	assert.False(t, car.IsWalkOnly())
	assert.True(t, car.IsStreetOnly())
}
