// Package seed loads listings from a YAML file. Listing creation belongs to an
// external catalogue, so this is how a standalone deployment gets something to sell.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tixswap/tixswap/internal/domain/listing"
)

// File is the seed file layout.
type File struct {
	Listings []Listing `yaml:"listings"`
}

// Listing is one seeded listing. A missing id is generated.
type Listing struct {
	ID       uuid.UUID       `yaml:"id"`
	SellerID uuid.UUID       `yaml:"seller_id"`
	Title    string          `yaml:"title"`
	Price    decimal.Decimal `yaml:"price"`
	Quantity int             `yaml:"quantity"`
}

// LoadListings decodes r and creates every listing as ACTIVE. Nothing is written
// unless the whole file is valid.
func LoadListings(ctx context.Context, r io.Reader, repo listing.Repository, now time.Time) ([]*listing.Listing, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	out := make([]*listing.Listing, 0, len(f.Listings))
	for i, s := range f.Listings {
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("listing %d: %w", i, err)
		}
		id := s.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		out = append(out, &listing.Listing{
			ID:        id,
			SellerID:  s.SellerID,
			Title:     strings.TrimSpace(s.Title),
			Status:    listing.StatusActive,
			Price:     s.Price,
			Quantity:  s.Quantity,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	for _, l := range out {
		if err := repo.Create(ctx, l); err != nil {
			return nil, fmt.Errorf("failed to create listing %s: %w", l.ID, err)
		}
	}
	return out, nil
}

func (s Listing) validate() error {
	switch {
	case s.SellerID == uuid.Nil:
		return errors.New("seller_id is required")
	case strings.TrimSpace(s.Title) == "":
		return errors.New("title is required")
	case !s.Price.IsPositive():
		return errors.New("price must be greater than zero")
	case s.Quantity < 1:
		return errors.New("quantity must be at least 1")
	}
	return nil
}
