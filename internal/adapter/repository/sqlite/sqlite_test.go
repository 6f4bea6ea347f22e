package sqlite

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/linkcache/internal/entity"

	sqlitedb "github.com/vadimbarashkov/linkcache/pkg/sqlite"
)

type URLRepositoryTestSuite struct {
	suite.Suite
	repo *URLRepository
}

func (suite *URLRepositoryTestSuite) SetupSubTest() {
	ctx := context.Background()

	db, err := sqlitedb.New(ctx, ":memory:")
	if err != nil {
		suite.T().Fatalf("Failed to open database: %v", err)
	}
	suite.T().Cleanup(func() {
		db.Close()
	})

	if err := sqlitedb.RunMigrations(db); err != nil {
		suite.T().Fatalf("Failed to run migrations: %v", err)
	}

	suite.repo = NewURLRepository(db)
}

func (suite *URLRepositoryTestSuite) TestSave() {
	suite.Run("success", func() {
		url, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")

		suite.NoError(err)
		suite.NotZero(url.ID)
		suite.Equal("abc123", url.ShortCode)
		suite.Equal("https://example.com", url.OriginalURL)
		suite.Zero(url.Clicks)
		suite.False(url.CreatedAt.IsZero())
	})

	suite.Run("short code exists", func() {
		_, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")
		suite.Require().NoError(err)

		url, err := suite.repo.Save(context.Background(), "abc123", "https://example.com/other")

		suite.ErrorIs(err, entity.ErrShortCodeExists)
		suite.Nil(url)
	})

	suite.Run("original url exists", func() {
		_, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")
		suite.Require().NoError(err)

		url, err := suite.repo.Save(context.Background(), "def456", "https://example.com")

		suite.ErrorIs(err, entity.ErrOriginalURLExists)
		suite.Nil(url)
	})
}

func (suite *URLRepositoryTestSuite) TestRetrieve() {
	suite.Run("url not found", func() {
		url, err := suite.repo.RetrieveByShortCode(context.Background(), "zzzzzzzzzz")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)

		url, err = suite.repo.RetrieveByOriginalURL(context.Background(), "https://unknown.example.com")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		saved, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")
		suite.Require().NoError(err)

		byCode, err := suite.repo.RetrieveByShortCode(context.Background(), "abc123")
		suite.NoError(err)
		suite.Equal(saved.ID, byCode.ID)

		byURL, err := suite.repo.RetrieveByOriginalURL(context.Background(), "https://example.com")
		suite.NoError(err)
		suite.Equal(saved.ID, byURL.ID)
	})
}

func (suite *URLRepositoryTestSuite) TestClicks() {
	suite.Run("url not found", func() {
		url, err := suite.repo.RetrieveAndIncrementClicks(context.Background(), "zzzzzzzzzz")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)

		err = suite.repo.IncrementClicks(context.Background(), "zzzzzzzzzz", 1)

		suite.ErrorIs(err, entity.ErrURLNotFound)
	})

	suite.Run("increments accumulate", func() {
		_, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")
		suite.Require().NoError(err)

		url, err := suite.repo.RetrieveAndIncrementClicks(context.Background(), "abc123")
		suite.NoError(err)
		suite.Equal(int64(1), url.Clicks)

		suite.NoError(suite.repo.IncrementClicks(context.Background(), "abc123", 5))

		url, err = suite.repo.RetrieveByShortCode(context.Background(), "abc123")
		suite.NoError(err)
		suite.Equal(int64(6), url.Clicks)
	})

	suite.Run("concurrent increments", func() {
		_, err := suite.repo.Save(context.Background(), "abc123", "https://example.com")
		suite.Require().NoError(err)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = suite.repo.RetrieveAndIncrementClicks(context.Background(), "abc123")
			}()
		}
		wg.Wait()

		url, err := suite.repo.RetrieveByShortCode(context.Background(), "abc123")
		suite.NoError(err)
		suite.Equal(int64(20), url.Clicks)
	})
}

func (suite *URLRepositoryTestSuite) TestListRecent() {
	suite.Run("empty", func() {
		urls, err := suite.repo.ListRecent(context.Background(), 10)

		suite.NoError(err)
		suite.Empty(urls)
	})

	suite.Run("most recent first", func() {
		for i := 0; i < 5; i++ {
			_, err := suite.repo.Save(context.Background(), fmt.Sprintf("code%d", i), fmt.Sprintf("https://example.com/%d", i))
			suite.Require().NoError(err)
		}

		urls, err := suite.repo.ListRecent(context.Background(), 3)

		suite.NoError(err)
		suite.Len(urls, 3)
		suite.Equal("code4", urls[0].ShortCode)
		suite.Equal("code3", urls[1].ShortCode)
		suite.Equal("code2", urls[2].ShortCode)
	})
}

func TestURLRepository(t *testing.T) {
	suite.Run(t, new(URLRepositoryTestSuite))
}
