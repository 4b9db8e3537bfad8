//go:build integration
// +build integration

package db_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/ammerola/data-forge/internal/adapters/db"
	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/services"
	"github.com/ammerola/data-forge/test/helpers"
)

type ItemRepositorySuite struct {
	suite.Suite
	testDB   *helpers.TestDB
	repo     *db.ItemRepository
	products *db.ItemRepository
	ctx      context.Context
}

func (s *ItemRepositorySuite) SetupSuite() {
	s.testDB = helpers.SetupTestDB(s.T())
	s.repo = db.NewItemRepository(s.testDB.Database, domain.Postcards.Name, helpers.TestLogger())
	s.products = db.NewItemRepository(s.testDB.Database, domain.Products.Name, helpers.TestLogger())
	s.ctx = context.Background()
}

func (s *ItemRepositorySuite) SetupTest() {
	s.Require().NoError(s.repo.Clear(s.ctx))
	s.Require().NoError(s.products.Clear(s.ctx))
}

func (s *ItemRepositorySuite) TestPutManyAndGetAll() {
	items := helpers.CreateTestItems(5)
	s.Require().NoError(s.repo.PutMany(s.ctx, items))

	got, err := s.repo.GetAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 5)
	for i := range items {
		s.Equal(items[i].ID, got[i].ID)
		s.Equal(items[i].Name, got[i].Name)
		s.True(items[i].Price.Equal(got[i].Price))
	}
}

func (s *ItemRepositorySuite) TestPutOneUpdatesInPlace() {
	items := helpers.CreateTestItems(3)
	s.Require().NoError(s.repo.PutMany(s.ctx, items))

	updated := items[0]
	updated.Stock = 0
	updated.Price = decimal.RequireFromString("9.99")
	s.Require().NoError(s.repo.PutOne(s.ctx, updated))

	keys, err := s.repo.Keys(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.IDs(items), keys)

	got, err := s.repo.Get(s.ctx, updated.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(0, got.Stock)
	s.Equal("9.99", got.Price.StringFixed(2))
}

func (s *ItemRepositorySuite) TestGetMissingReturnsNil() {
	got, err := s.repo.Get(s.ctx, "missing")
	s.NoError(err)
	s.Nil(got)
}

func (s *ItemRepositorySuite) TestDeleteManyAndCount() {
	s.Require().NoError(s.repo.PutMany(s.ctx, helpers.CreateTestItems(4)))
	s.Require().NoError(s.products.PutMany(s.ctx, domain.InitialProducts()))

	s.Require().NoError(s.repo.DeleteMany(s.ctx, []string{"item-01", "item-03"}))

	count, err := s.repo.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), count)

	count, err = s.products.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(len(domain.InitialProducts())), count)
}

func (s *ItemRepositorySuite) TestReplaceAllResetsOrder() {
	s.Require().NoError(s.repo.PutMany(s.ctx, helpers.CreateTestItems(4)))

	replacement := []domain.Item{
		helpers.CreateTestItem(func(i *domain.Item) { i.ID = "z" }),
		helpers.CreateTestItem(func(i *domain.Item) { i.ID = "a" }),
	}
	s.Require().NoError(s.repo.ReplaceAll(s.ctx, replacement))

	keys, err := s.repo.Keys(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"z", "a"}, keys)
}

func (s *ItemRepositorySuite) TestPersistenceSeedOverPostgres() {
	p := services.NewPersistence(s.repo, domain.Postcards, helpers.TestLogger())

	inserted, err := p.Seed(s.ctx, domain.InitialPostcards(), "mismatch")
	s.Require().NoError(err)
	s.Equal(20, inserted)

	inserted, err = p.Seed(s.ctx, domain.InitialPostcards(), "mismatch")
	s.Require().NoError(err)
	s.Equal(0, inserted)

	items, err := p.Load(s.ctx)
	s.Require().NoError(err)
	s.Len(items, 20)
}

func (s *ItemRepositorySuite) TestHealth() {
	health := s.testDB.Database.Health(s.ctx)
	s.Equal("healthy", health["status"])
}

func TestItemRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(ItemRepositorySuite))
}
