package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

type ReportStatus string

const (
	StatusPending  ReportStatus = "Pending"
	StatusVerified ReportStatus = "Verified"
	StatusRejected ReportStatus = "Rejected"
)

// IsBuiltin reports whether s is one of the three review states every
// deployment understands.
func (s ReportStatus) IsBuiltin() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// Coordinate is a latitude or longitude. Input that does not parse as a
// number is kept as NaN and written as JSON null.
type Coordinate float64

func ParseCoordinate(raw string) (Coordinate, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return Coordinate(math.NaN()), false
	}
	return Coordinate(f), true
}

func (c Coordinate) Valid() bool {
	f := float64(c)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(c))
}

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Coordinate(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = Coordinate(f)
	return nil
}

type Report struct {
	ID            string       `json:"id"`
	ImageURL      string       `json:"imageUrl"`
	Location      string       `json:"location"`
	Lat           Coordinate   `json:"lat"`
	Lng           Coordinate   `json:"lng"`
	Description   string       `json:"description"`
	ReporterName  string       `json:"reporterName"`
	ReporterPhone string       `json:"reporterPhone"`
	Status        ReportStatus `json:"status"`
	ProblemType   string       `json:"problemType,omitempty"`
	ForwardTo     string       `json:"forwardTo,omitempty"`
	Timestamp     int64        `json:"timestamp"`
	RepeatCount   int          `json:"repeatCount"`
}

type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Verified int `json:"verified"`
	Rejected int `json:"rejected"`
	Other    int `json:"other,omitempty"`
}

// Request/Response DTOs

// SubmitReportInput carries the raw form values of a new report. Lat and
// Lng are parsed by the service.
type SubmitReportInput struct {
	Location      string
	Lat           string
	Lng           string
	Description   string
	ReporterName  string
	ReporterPhone string
	ImageRef      string
}

// StatusUpdate is the PATCH body. Empty fields are left untouched.
type StatusUpdate struct {
	Status      ReportStatus `json:"status"`
	ProblemType string       `json:"problemType"`
	ForwardTo   string       `json:"forwardTo"`
}

func (u StatusUpdate) IsEmpty() bool {
	return u.Status == "" && u.ProblemType == "" && u.ForwardTo == ""
}
