package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5

	searchLimit = 50
)

var (
	ErrSearchQueryRequired = errors.New("search query is required")
	ErrInvalidRating       = fmt.Errorf("rating must be between %d and %d", MinRating, MaxRating)
)

// SearchDoctors lists doctors whose first name, last name or specialization
// contains query, ignoring case. Best rated doctors come first.
func (s *Service) SearchDoctors(ctx context.Context, query string) ([]Doctor, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrSearchQueryRequired
	}
	doctors, err := s.repo.SearchDoctors(ctx, query, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search doctors: %w", err)
	}
	return doctors, nil
}

// RateDoctor records one evaluation of stars for the doctor and returns the
// doctor with the recomputed average.
func (s *Service) RateDoctor(ctx context.Context, doctorID uuid.UUID, stars int) (*Doctor, error) {
	if stars < MinRating || stars > MaxRating {
		return nil, ErrInvalidRating
	}
	doctor, err := s.repo.RateDoctor(ctx, doctorID, stars)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("rate doctor: %w", err)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Int("stars", stars).
		Float64("star", doctor.Star).
		Int("evaluations", doctor.Evaluations).
		Msg("doctor rated")

	return doctor, nil
}
