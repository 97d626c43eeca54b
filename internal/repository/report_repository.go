package repository

import (
	"context"
	"sync"

	"waste-report-service/internal/model"
)

// ReportStore holds the whole ordered report collection. There are no
// per-record writes: every mutation replaces the full collection.
type ReportStore interface {
	// Load returns the collection in stored order, creating the seed
	// collection on first use.
	Load(ctx context.Context) ([]model.Report, error)
	// Save replaces the stored collection.
	Save(ctx context.Context, reports []model.Report) error
	// Update runs load, fn and save as one serialized unit. Nothing is
	// written when fn returns an error.
	Update(ctx context.Context, fn func([]model.Report) ([]model.Report, error)) error
}

// FallbackImageURL is stored as imageUrl when a report arrives without a photo.
const FallbackImageURL = "https://images.unsplash.com/photo-1611288870280-4a331d941501?q=80&w=2574&auto=format&fit=crop"

// SeedReports is the demo collection written on first use.
func SeedReports() []model.Report {
	return []model.Report{
		{
			ID:            "1716881234567",
			ImageURL:      FallbackImageURL,
			Location:      "Central Park, Sector 4",
			Lat:           28.6139,
			Lng:           77.2090,
			Description:   "Pile of plastic waste near the park entrance.",
			ReporterName:  "Amit Sharma",
			ReporterPhone: "9876543210",
			Status:        model.StatusPending,
			Timestamp:     1716881234567,
			RepeatCount:   1,
		},
	}
}

func cloneReports(reports []model.Report) []model.Report {
	out := make([]model.Report, len(reports))
	copy(out, reports)
	return out
}

// MemoryReportStore keeps the collection in process memory.
type MemoryReportStore struct {
	mu      sync.Mutex
	reports []model.Report
	saves   int
}

func NewMemoryReportStore(initial []model.Report) *MemoryReportStore {
	return &MemoryReportStore{reports: cloneReports(initial)}
}

func (s *MemoryReportStore) Load(ctx context.Context) ([]model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneReports(s.reports), nil
}

func (s *MemoryReportStore) Save(ctx context.Context, reports []model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = cloneReports(reports)
	s.saves++
	return nil
}

func (s *MemoryReportStore) Update(ctx context.Context, fn func([]model.Report) ([]model.Report, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(cloneReports(s.reports))
	if err != nil {
		return err
	}
	s.reports = cloneReports(next)
	s.saves++
	return nil
}

// Saves returns how many times the collection has been written.
func (s *MemoryReportStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
