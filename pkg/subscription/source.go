package subscription

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// CatalogSource yields the subscription definitions to sync with the
// provider. Sources return definitions without provider UIDs; SyncCatalog
// fills them in from existing records or fresh registrations.
type CatalogSource interface {
	Load(ctx context.Context) ([]Subscription, error)
}

// catalogEntry is the on-disk shape of one catalog definition.
type catalogEntry struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Type        string          `yaml:"type"`
	Cadence     string          `yaml:"cadence"`
	Price       decimal.Decimal `yaml:"price"`
	SignupFee   decimal.Decimal `yaml:"signup_fee"`
	ProductRef  string          `yaml:"product_ref"`
}

type catalogFile struct {
	Subscriptions []catalogEntry `yaml:"subscriptions"`
}

// FileSource loads catalog definitions from a YAML file.
type FileSource struct {
	path string
}

// NewFileSource creates a catalog source backed by a YAML file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Load(ctx context.Context) ([]Subscription, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	defs := make([]Subscription, 0, len(file.Subscriptions))
	for _, entry := range file.Subscriptions {
		cadence, err := ParseCadence(entry.Cadence)
		if err != nil {
			return nil, fmt.Errorf("%w: catalog entry %q: %v", ErrFailedToLoadCatalog, entry.ProductRef, err)
		}
		defs = append(defs, Subscription{
			Name:             entry.Name,
			Description:      entry.Description,
			Type:             SubscriptionType(entry.Type),
			Cadence:          cadence,
			Price:            entry.Price,
			SignupFee:        entry.SignupFee,
			ProductReference: entry.ProductRef,
		})
	}
	return defs, nil
}

// StaticSource serves a fixed set of definitions. Used in tests.
type StaticSource []Subscription

func (s StaticSource) Load(ctx context.Context) ([]Subscription, error) {
	out := make([]Subscription, len(s))
	copy(out, s)
	return out, nil
}
