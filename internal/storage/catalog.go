package storage

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/money"
)

type catalogFile struct {
	Products []struct {
		ID     string `yaml:"id"`
		Name   string `yaml:"name"`
		Price  string `yaml:"price"`
		Image  string `yaml:"image"`
		Active *bool  `yaml:"active"`
	} `yaml:"products"`
}

// LoadCatalog reads a YAML product list. Products are active unless they say
// otherwise; prices are decimal strings such as "35000.00".
func LoadCatalog(path string) ([]Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	products := make([]Product, 0, len(file.Products))
	for _, entry := range file.Products {
		price, err := money.Parse(entry.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog product %q: %w", entry.ID, err)
		}
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		products = append(products, Product{
			ID:     entry.ID,
			Name:   entry.Name,
			Price:  price,
			Image:  entry.Image,
			Active: active,
		})
	}
	return products, nil
}

// SeedCatalog upserts every product into the store.
func SeedCatalog(ctx context.Context, store Store, products []Product) error {
	for _, product := range products {
		if err := store.UpsertProduct(ctx, product); err != nil {
			return fmt.Errorf("seed product %q: %w", product.ID, err)
		}
	}
	return nil
}
