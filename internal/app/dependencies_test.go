package app

import (
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

func TestNewDependencies(t *testing.T) {
	logger := log.WithField("test", "dependencies")
	deps := NewDependencies(logger)

	if deps == nil {
		t.Fatal("NewDependencies should not return nil")
	}

	if deps.Store == nil {
		t.Error("Store should not be nil")
	}
	if deps.Payments == nil {
		t.Error("Payments should not be nil")
	}
	if deps.Products == nil {
		t.Error("Products should not be nil")
	}
	if deps.Movements == nil {
		t.Error("Movements should not be nil")
	}
	if deps.GatewayLog == nil {
		t.Error("GatewayLog should not be nil")
	}
	if deps.Logger == nil {
		t.Error("Logger should not be nil")
	}
}

func TestNewDependencies_WithNilLogger(t *testing.T) {
	deps := NewDependencies(nil)

	if deps.Logger == nil {
		t.Error("Logger should be initialized even when nil is passed")
	}
}

func TestNewDependencies_RepositoriesShareStore(t *testing.T) {
	deps := NewDependencies(nil)

	product := deps.Store.SeedProduct(domain.Product{SKU: "FER-DEPS", Price: 1000, Units: 5, Active: true})

	created, err := deps.Payments.Create(newTestPayment(product.ID))
	if err != nil {
		t.Fatalf("Payments.Create failed: %v", err)
	}

	// Продукт, посеянный через Store, виден репозиторию товаров.
	got, err := deps.Products.Get(product.ID)
	if err != nil {
		t.Fatalf("Products.Get failed: %v", err)
	}
	if got.SKU != "FER-DEPS" {
		t.Errorf("unexpected SKU %s", got.SKU)
	}

	if created.ID == 0 {
		t.Error("payment should get an ID")
	}
}

func TestNewDependencies_IndependentInstances(t *testing.T) {
	deps1 := NewDependencies(nil)
	deps2 := NewDependencies(nil)

	if deps1 == deps2 {
		t.Error("NewDependencies should create independent instances")
	}
	if deps1.Store == deps2.Store {
		t.Error("Store instances should be independent")
	}
}
