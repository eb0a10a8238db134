// Package seed loads facilities and vehicle registrations from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/railzwaylabs/parkway/internal/account/domain"
	facilitydomain "github.com/railzwaylabs/parkway/internal/facility/domain"
	pricingdomain "github.com/railzwaylabs/parkway/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var ErrEmptySeed = errors.New("seed_file_empty")

type File struct {
	Facilities []Facility `yaml:"facilities"`
	Vehicles   []Vehicle  `yaml:"vehicles"`
}

type Facility struct {
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
	Currency string `yaml:"currency"`
	Capacity int64  `yaml:"capacity"`
	Tiers    []Tier `yaml:"tiers"`
}

// Tier accepts .inf as a threshold for an explicit overflow tier.
type Tier struct {
	MinutesThreshold float64 `yaml:"minutes_threshold"`
	Price            int64   `yaml:"price"`
}

type Vehicle struct {
	Plate     string `yaml:"plate"`
	AccountID int64  `yaml:"account_id"`
}

type Result struct {
	Facilities []snowflake.ID
	Vehicles   int
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(f.Facilities) == 0 && len(f.Vehicles) == 0 {
		return nil, ErrEmptySeed
	}
	return &f, nil
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Facilities facilitydomain.Service
	Directory  accountdomain.Directory
}

type Seeder struct {
	log        *zap.Logger
	facilities facilitydomain.Service
	directory  accountdomain.Directory
}

func New(p Params) *Seeder {
	return &Seeder{
		log:        p.Log.Named("seed"),
		facilities: p.Facilities,
		directory:  p.Directory,
	}
}

// Apply creates every facility and registers every vehicle. Vehicle
// registration is an upsert; facilities are created anew on each run.
func (s *Seeder) Apply(ctx context.Context, f *File) (*Result, error) {
	res := &Result{}

	for i, fac := range f.Facilities {
		tiers := make(pricingdomain.RateTable, 0, len(fac.Tiers))
		for _, t := range fac.Tiers {
			tiers = append(tiers, pricingdomain.RateTier{MinutesThreshold: t.MinutesThreshold, Price: t.Price})
		}

		created, err := s.facilities.Create(ctx, facilitydomain.CreateRequest{
			Name:     fac.Name,
			Location: fac.Location,
			Currency: fac.Currency,
			Capacity: fac.Capacity,
			Tiers:    tiers,
		})
		if err != nil {
			return res, fmt.Errorf("facility %d (%s): %w", i, fac.Name, err)
		}
		res.Facilities = append(res.Facilities, created.ID)
		s.log.Info("facility seeded",
			zap.String("facility_id", created.ID.String()),
			zap.String("name", created.Name),
		)
	}

	for _, v := range f.Vehicles {
		plate := strings.ToUpper(strings.TrimSpace(v.Plate))
		if err := s.directory.Register(ctx, plate, snowflake.ID(v.AccountID)); err != nil {
			return res, fmt.Errorf("vehicle %q: %w", v.Plate, err)
		}
		res.Vehicles++
	}
	s.log.Info("vehicles seeded", zap.Int("count", res.Vehicles))

	return res, nil
}
