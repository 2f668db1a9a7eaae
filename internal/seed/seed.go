// Package seed loads the bundled development data set into the database and
// removes it again.
package seed

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/utafrali/natours/internal/auth"
	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/repository"
	"github.com/utafrali/natours/pkg/database"
	apperrors "github.com/utafrali/natours/pkg/errors"
	"github.com/utafrali/natours/pkg/slug"
)

//go:embed data/*.json
var dataFS embed.FS

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultPassword is given to every seeded account.
const DefaultPassword = "test1234"

// namespace makes seeded ids stable across runs.
var namespace = uuid.MustParse("6f1c3c7e-8a61-4f5e-9a52-3d7b0f2c9e11")

type userRecord struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Photo string `json:"photo"`
}

type tourRecord struct {
	Name          string            `json:"name"`
	Duration      int               `json:"duration"`
	MaxGroupSize  int               `json:"maxGroupSize"`
	Difficulty    string            `json:"difficulty"`
	Price         float64           `json:"price"`
	PriceDiscount *float64          `json:"priceDiscount"`
	Summary       string            `json:"summary"`
	Description   string            `json:"description"`
	ImageCover    string            `json:"imageCover"`
	Images        []string          `json:"images"`
	StartDates    []time.Time       `json:"startDates"`
	SecretTour    bool              `json:"secretTour"`
	StartLocation *domain.GeoPoint  `json:"startLocation"`
	Locations     []domain.GeoPoint `json:"locations"`
	Guides        []string          `json:"guides"` // user emails
}

type reviewRecord struct {
	Tour   string  `json:"tour"` // tour name
	User   string  `json:"user"` // user email
	Rating float64 `json:"rating"`
	Review string  `json:"review"`
}

// Data is the parsed development data set.
type Data struct {
	Users   []userRecord
	Tours   []tourRecord
	Reviews []reviewRecord
}

// Load parses the embedded data files.
func Load() (*Data, error) {
	d := &Data{}
	files := []struct {
		name string
		dst  any
	}{
		{"data/users.json", &d.Users},
		{"data/tours.json", &d.Tours},
		{"data/reviews.json", &d.Reviews},
	}
	for _, f := range files {
		raw, err := dataFS.ReadFile(f.name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.name, err)
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
	}
	return d, nil
}

// Recalculator recomputes a tour's rating aggregate.
type Recalculator interface {
	Recalculate(ctx context.Context, tourID string) (domain.RatingStats, error)
}

// Seeder writes the data set through the repositories, so seeded rows obey
// the same rules as rows created over the API.
type Seeder struct {
	db      database.DBTX
	tours   repository.TourRepository
	users   repository.UserRepository
	reviews repository.ReviewRepository
	ratings Recalculator
	logger  *slog.Logger
	now     func() time.Time
}

// NewSeeder creates a seeder. db is only used by Delete.
func NewSeeder(
	db database.DBTX,
	tours repository.TourRepository,
	users repository.UserRepository,
	reviews repository.ReviewRepository,
	ratings Recalculator,
	logger *slog.Logger,
) *Seeder {
	return &Seeder{
		db:      db,
		tours:   tours,
		users:   users,
		reviews: reviews,
		ratings: ratings,
		logger:  logger,
		now:     time.Now,
	}
}

// Summary counts the rows an Import inserted. Rows that already existed are
// skipped and not counted.
type Summary struct {
	Users   int
	Tours   int
	Reviews int
}

// Import inserts users, then tours, then reviews, and finally recomputes the
// rating of every seeded tour. Running it twice is harmless.
func (s *Seeder) Import(ctx context.Context, d *Data) (Summary, error) {
	var sum Summary

	hash, err := auth.HashPassword(DefaultPassword)
	if err != nil {
		return sum, err
	}
	now := s.now().UTC()

	userIDs := make(map[string]string, len(d.Users))
	for _, rec := range d.Users {
		id := stableID("user", rec.Email)
		userIDs[rec.Email] = id
		photo := rec.Photo
		if photo == "" {
			photo = domain.DefaultPhoto
		}
		u := &domain.User{
			ID:           id,
			Name:         rec.Name,
			Email:        rec.Email,
			Photo:        photo,
			Role:         rec.Role,
			PasswordHash: hash,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		inserted, err := s.insert(ctx, "user", rec.Email, s.users.Create(ctx, u))
		if err != nil {
			return sum, err
		}
		if inserted {
			sum.Users++
		}
	}

	tourIDs := make(map[string]string, len(d.Tours))
	for _, rec := range d.Tours {
		id := stableID("tour", rec.Name)
		tourIDs[rec.Name] = id
		guides := make([]string, 0, len(rec.Guides))
		for _, email := range rec.Guides {
			gid, ok := userIDs[email]
			if !ok {
				return sum, fmt.Errorf("tour %q: unknown guide %q", rec.Name, email)
			}
			guides = append(guides, gid)
		}
		t := &domain.Tour{
			ID:              id,
			Name:            rec.Name,
			Slug:            slug.Generate(rec.Name),
			Duration:        rec.Duration,
			MaxGroupSize:    rec.MaxGroupSize,
			Difficulty:      rec.Difficulty,
			RatingsAverage:  domain.DefaultRatingsAverage,
			RatingsQuantity: domain.DefaultRatingsQuantity,
			Price:           rec.Price,
			PriceDiscount:   rec.PriceDiscount,
			Summary:         rec.Summary,
			Description:     rec.Description,
			ImageCover:      rec.ImageCover,
			Images:          nonNil(rec.Images),
			StartDates:      rec.StartDates,
			SecretTour:      rec.SecretTour,
			StartLocation:   rec.StartLocation,
			Locations:       rec.Locations,
			Guides:          guides,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		inserted, err := s.insert(ctx, "tour", rec.Name, s.tours.Create(ctx, t))
		if err != nil {
			return sum, err
		}
		if inserted {
			sum.Tours++
		}
	}

	for _, rec := range d.Reviews {
		tourID, ok := tourIDs[rec.Tour]
		if !ok {
			return sum, fmt.Errorf("review: unknown tour %q", rec.Tour)
		}
		userID, ok := userIDs[rec.User]
		if !ok {
			return sum, fmt.Errorf("review: unknown user %q", rec.User)
		}
		r := &domain.Review{
			ID:        stableID("review", rec.Tour+"/"+rec.User),
			Review:    rec.Review,
			Rating:    rec.Rating,
			TourID:    tourID,
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		inserted, err := s.insert(ctx, "review", rec.Tour+"/"+rec.User, s.reviews.Create(ctx, r))
		if err != nil {
			return sum, err
		}
		if inserted {
			sum.Reviews++
		}
	}

	for name, id := range tourIDs {
		stats, err := s.ratings.Recalculate(ctx, id)
		if err != nil {
			return sum, fmt.Errorf("recalculate rating of %q: %w", name, err)
		}
		s.logger.Debug("tour rating recalculated",
			slog.String("tour", name),
			slog.Int("quantity", stats.Quantity),
			slog.Float64("average", stats.Average),
		)
	}

	return sum, nil
}

// insert classifies the result of a Create. Rows left by an earlier import
// are skipped.
func (s *Seeder) insert(ctx context.Context, kind, key string, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperrors.ErrAlreadyExists):
		s.logger.InfoContext(ctx, "seed row exists, skipping",
			slog.String("kind", kind),
			slog.String("key", key),
		)
		return false, nil
	default:
		return false, fmt.Errorf("seed %s %q: %w", kind, key, err)
	}
}

// Delete removes every tour and user. Reviews and bookings go with them
// through the foreign keys.
func (s *Seeder) Delete(ctx context.Context) error {
	for _, table := range []string{"tours", "users"} {
		tag, err := s.db.Exec(ctx, "DELETE FROM "+table)
		if err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
		s.logger.InfoContext(ctx, "table cleared",
			slog.String("table", table),
			slog.Int64("rows", tag.RowsAffected()),
		)
	}
	return nil
}

func stableID(kind, key string) string {
	return uuid.NewSHA1(namespace, []byte(kind+":"+key)).String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
