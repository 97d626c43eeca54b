package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinate(t *testing.T) {
	c, ok := ParseCoordinate(" 28.6139 ")
	assert.True(t, ok)
	assert.Equal(t, Coordinate(28.6139), c)

	c, ok = ParseCoordinate("north-ish")
	assert.False(t, ok)
	assert.True(t, math.IsNaN(float64(c)))
	assert.False(t, c.Valid())

	_, ok = ParseCoordinate("")
	assert.False(t, ok)
}

func TestCoordinate_JSONNaNIsNull(t *testing.T) {
	r := Report{ID: "a", Lat: Coordinate(math.NaN()), Lng: 77.209, Status: StatusPending}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Nil(t, raw["lat"])
	assert.Equal(t, 77.209, raw["lng"])

	var back Report
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, math.IsNaN(float64(back.Lat)))
	assert.Equal(t, Coordinate(77.209), back.Lng)
}

func TestReport_OptionalRoutingFieldsOmitted(t *testing.T) {
	data, err := json.Marshal(Report{ID: "a", Status: StatusPending})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "problemType")
	assert.NotContains(t, string(data), "forwardTo")

	data, err = json.Marshal(Report{ID: "a", Status: StatusVerified, ProblemType: "Plastic", ForwardTo: "Ward 4"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"problemType":"Plastic"`)
	assert.Contains(t, string(data), `"forwardTo":"Ward 4"`)
}

func TestReportStatus_IsBuiltin(t *testing.T) {
	assert.True(t, StatusPending.IsBuiltin())
	assert.True(t, StatusVerified.IsBuiltin())
	assert.True(t, StatusRejected.IsBuiltin())
	assert.False(t, ReportStatus("pending").IsBuiltin())
	assert.False(t, ReportStatus("Escalated").IsBuiltin())
}

func TestStatusUpdate_IsEmpty(t *testing.T) {
	assert.True(t, StatusUpdate{}.IsEmpty())
	assert.False(t, StatusUpdate{ForwardTo: "Ward 4"}.IsEmpty())
}
