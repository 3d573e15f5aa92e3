// Package seed loads fixture users, stores and products from YAML.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
)

// File is the on-disk shape. Money is written as strings ("29.99") so no
// value passes through a float.
type File struct {
	Users    []User    `yaml:"users" validate:"dive"`
	Stores   []Store   `yaml:"stores" validate:"dive"`
	Products []Product `yaml:"products" validate:"dive"`
}

type User struct {
	ID            string   `yaml:"id" validate:"required"`
	UserType      string   `yaml:"userType" validate:"omitempty,oneof=STANDARD CREATOR"`
	FirstName     string   `yaml:"firstName"`
	LastName      string   `yaml:"lastName"`
	Email         string   `yaml:"email" validate:"omitempty,email"`
	Balance       string   `yaml:"balance" validate:"omitempty,decimal"`
	FollowedUsers []string `yaml:"followedUsers"`
	Followers     []string `yaml:"followers"`
	StoreID       string   `yaml:"storeId"`
}

type Store struct {
	ID          string   `yaml:"id" validate:"required"`
	ProfessorID string   `yaml:"professorId" validate:"required"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	ProductIDs  []string `yaml:"productIds"`
}

type Product struct {
	ID                      string   `yaml:"id" validate:"required"`
	StoreID                 string   `yaml:"storeId" validate:"required"`
	Name                    string   `yaml:"name" validate:"required"`
	Description             string   `yaml:"description"`
	Price                   string   `yaml:"price" validate:"required,decimal"`
	AffiliateCommissionRate string   `yaml:"affiliateCommissionRate" validate:"omitempty,decimal"`
	Type                    string   `yaml:"type" validate:"required,oneof=PHYSICAL DIGITAL_COURSE DIGITAL_EBOOK DIGITAL_OTHER"`
	DigitalContentURL       string   `yaml:"digitalContentUrl" validate:"omitempty,url"`
	Colors                  []string `yaml:"colors"`
}

var validate = newValidator()

// newValidator adds a "decimal" tag for money strings such as "29.99".
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(fl.Field().String())
		return err == nil
	})
	return v
}

// Parse decodes and validates a seed document.
func Parse(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return f, fmt.Errorf("decode seed: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return f, fmt.Errorf("validate seed: %w", err)
	}
	return f, nil
}

func ParseFile(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer fh.Close()
	return Parse(fh)
}

// Apply upserts every record in one transaction.
func Apply(ctx context.Context, s commerce.Repository, f File) error {
	users, stores, products, err := f.convert()
	if err != nil {
		return err
	}
	return s.WithinTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		for _, u := range users {
			if err := tx.PutUser(ctx, u); err != nil {
				return fmt.Errorf("put user %s: %w", u.ID, err)
			}
		}
		for _, st := range stores {
			if err := tx.PutStore(ctx, st); err != nil {
				return fmt.Errorf("put store %s: %w", st.ID, err)
			}
		}
		for _, p := range products {
			if err := tx.PutProduct(ctx, p); err != nil {
				return fmt.Errorf("put product %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (f File) convert() ([]commerce.User, []commerce.Store, []commerce.Product, error) {
	users := make([]commerce.User, 0, len(f.Users))
	for _, u := range f.Users {
		bal, err := money(u.Balance)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("user %s balance: %w", u.ID, err)
		}
		ut := commerce.UserType(u.UserType)
		if ut == "" {
			ut = commerce.UserStandard
		}
		users = append(users, commerce.User{
			ID:            u.ID,
			UserType:      ut,
			FirstName:     u.FirstName,
			LastName:      u.LastName,
			Email:         u.Email,
			Balance:       bal,
			FollowedUsers: orEmpty(u.FollowedUsers),
			Followers:     orEmpty(u.Followers),
			StoreID:       u.StoreID,
		})
	}

	stores := make([]commerce.Store, 0, len(f.Stores))
	for _, s := range f.Stores {
		stores = append(stores, commerce.Store{
			ID:          s.ID,
			ProfessorID: s.ProfessorID,
			Name:        s.Name,
			Description: s.Description,
			ProductIDs:  orEmpty(s.ProductIDs),
		})
	}

	products := make([]commerce.Product, 0, len(f.Products))
	for _, p := range f.Products {
		price, err := money(p.Price)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("product %s price: %w", p.ID, err)
		}
		rate, err := money(p.AffiliateCommissionRate)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("product %s commission rate: %w", p.ID, err)
		}
		if !price.IsPositive() {
			return nil, nil, nil, fmt.Errorf("product %s: price must be positive", p.ID)
		}
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return nil, nil, nil, fmt.Errorf("product %s: commission rate outside [0,1]", p.ID)
		}
		products = append(products, commerce.Product{
			ID:                      p.ID,
			StoreID:                 p.StoreID,
			Name:                    p.Name,
			Description:             p.Description,
			Price:                   price,
			AffiliateCommissionRate: rate,
			Type:                    commerce.ProductType(p.Type),
			DigitalContentURL:       p.DigitalContentURL,
			Colors:                  p.Colors,
			Ratings:                 []commerce.ProductRating{},
		})
	}
	return users, stores, products, nil
}

func money(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
