package marketplace

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdmx/codepad/apperr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	tick := time.Unix(1700000000, 0)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return s
}

func seeded(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(t)
	n, err := s.SeedSamples()
	require.NoError(t, err)
	require.Equal(t, 4, n)
	return s
}

func TestSeedSamples(t *testing.T) {
	s := seeded(t)

	tpl, err := s.Get("tpl_counter")
	require.NoError(t, err)
	assert.Equal(t, "Counter Canister", tpl.Name)
	assert.Equal(t, "Rust", tpl.Language)
	assert.Equal(t, uint32(28), tpl.Downloads)
	assert.Contains(t, tpl.Code, "fn increment()")
	assert.False(t, tpl.CreatedAt.IsZero())
}

func TestCreate(t *testing.T) {
	s := newTestStore(t)

	tpl, err := s.Create(NewTemplate{Name: "Todo", Language: "Motoko", Category: "Example", Code: "actor {}"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tpl.ID, "tpl_"))
	assert.Equal(t, DefaultAuthor, tpl.Author)
	assert.Zero(t, tpl.Downloads)
	assert.Zero(t, tpl.Rating)

	got, err := s.Get(tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tpl, got)

	_, err = s.Create(NewTemplate{Language: "Motoko"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = s.Create(NewTemplate{Name: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("tpl_missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListOrderedByID(t *testing.T) {
	s := seeded(t)

	list := s.List()
	require.Len(t, list, 4)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
}

func TestSearch(t *testing.T) {
	s := seeded(t)

	tests := []struct {
		name    string
		query   string
		filters *SearchFilters
		want    []string
	}{
		{"EmptyQueryMatchesAll", "", nil, []string{"tpl_counter", "tpl_hello_world", "tpl_motoko_token", "tpl_nft_basic"}},
		{"NameCaseInsensitive", "COUNTER", nil, []string{"tpl_counter"}},
		{"Description", "minting", nil, []string{"tpl_nft_basic"}},
		{"Code", "totalsupply", nil, []string{"tpl_motoko_token"}},
		{"Category", "", &SearchFilters{Category: "NFT"}, []string{"tpl_nft_basic"}},
		{"Language", "", &SearchFilters{Language: "Motoko"}, []string{"tpl_motoko_token"}},
		{"Author", "", &SearchFilters{Author: "DFINITY"}, []string{"tpl_motoko_token"}},
		{"MinRating", "", &SearchFilters{MinRating: 4.6}, []string{"tpl_motoko_token", "tpl_nft_basic"}},
		{"QueryAndFilter", "canister", &SearchFilters{Category: "Smart Contract", MinRating: 4.4}, []string{"tpl_hello_world"}},
		{"NoMatch", "solidity", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := []string{}
			for _, tpl := range s.Search(tt.query, tt.filters) {
				ids = append(ids, tpl.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestUpdate(t *testing.T) {
	s := seeded(t)
	before, err := s.Get("tpl_counter")
	require.NoError(t, err)

	name := "Counter v2"
	code := "// new"
	updated, err := s.Update("tpl_counter", TemplateUpdate{Name: &name, Code: &code})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, code, updated.Code)
	assert.Equal(t, before.Description, updated.Description)
	assert.True(t, updated.UpdatedAt.After(before.UpdatedAt))

	_, err = s.Update("tpl_missing", TemplateUpdate{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateRejectsEmptyRequiredFields(t *testing.T) {
	s := seeded(t)
	blank := "  "

	_, err := s.Update("tpl_counter", TemplateUpdate{Name: &blank})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = s.Update("tpl_counter", TemplateUpdate{Language: &blank})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	got, err := s.Get("tpl_counter")
	require.NoError(t, err)
	assert.Equal(t, "Counter Canister", got.Name)
	assert.Equal(t, "Rust", got.Language)
}

func TestRate(t *testing.T) {
	t.Run("FirstRating", func(t *testing.T) {
		s := newTestStore(t)
		tpl, err := s.Create(NewTemplate{Name: "x", Language: "Rust"})
		require.NoError(t, err)

		rated, err := s.Rate(tpl.ID, 4)
		require.NoError(t, err)
		assert.InDelta(t, 4.0, rated.Rating, 1e-9)
		assert.Equal(t, uint32(1), rated.RatingCount)
	})

	t.Run("RunningMean", func(t *testing.T) {
		s := newTestStore(t)
		tpl, err := s.Create(NewTemplate{Name: "x", Language: "Rust"})
		require.NoError(t, err)

		for _, r := range []float64{5, 3, 1} {
			_, err = s.Rate(tpl.ID, r)
			require.NoError(t, err)
		}
		got, err := s.Get(tpl.ID)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, got.Rating, 1e-9)
		assert.Equal(t, uint32(3), got.RatingCount)
	})

	t.Run("SeededRatingCountsAsPrior", func(t *testing.T) {
		s := seeded(t)

		rated, err := s.Rate("tpl_counter", 5)
		require.NoError(t, err)
		assert.InDelta(t, (4.2*9+5)/10, rated.Rating, 1e-9)
		assert.Equal(t, uint32(10), rated.RatingCount)
	})

	t.Run("StaysInRange", func(t *testing.T) {
		s := newTestStore(t)
		tpl, err := s.Create(NewTemplate{Name: "x", Language: "Rust"})
		require.NoError(t, err)

		for i := 0; i < 50; i++ {
			rated, rateErr := s.Rate(tpl.ID, float64(1+i%5))
			require.NoError(t, rateErr)
			assert.GreaterOrEqual(t, rated.Rating, 0.0)
			assert.LessOrEqual(t, rated.Rating, 5.0)
		}
	})

	t.Run("RejectsOutOfRange", func(t *testing.T) {
		s := seeded(t)
		for _, r := range []float64{0, 0.99, 5.01, -1, math.NaN(), math.Inf(1)} {
			_, err := s.Rate("tpl_counter", r)
			assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
		}
		got, err := s.Get("tpl_counter")
		require.NoError(t, err)
		assert.InDelta(t, 4.2, got.Rating, 1e-9)
	})

	t.Run("Missing", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Rate("tpl_missing", 3)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestDownload(t *testing.T) {
	s := seeded(t)

	first, err := s.Download("tpl_nft_basic")
	require.NoError(t, err)
	second, err := s.Download("tpl_nft_basic")
	require.NoError(t, err)
	assert.Equal(t, uint32(16), first.Downloads)
	assert.Equal(t, uint32(17), second.Downloads)

	_, err = s.Download("tpl_missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCategoriesAndLanguages(t *testing.T) {
	s := seeded(t)

	assert.Equal(t, []string{"NFT", "Smart Contract", "Token"}, s.Categories())
	assert.Equal(t, []string{"Motoko", "Rust"}, s.Languages())
}

func TestStats(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		s := newTestStore(t)
		assert.Equal(t, Stats{}, s.Stats())
	})

	t.Run("Seeded", func(t *testing.T) {
		s := seeded(t)
		st := s.Stats()
		assert.Equal(t, 4, st.TotalTemplates)
		assert.Equal(t, uint64(42+28+15+1200), st.TotalDownloads)
		assert.InDelta(t, (4.5+4.2+4.8+4.8)/4, st.AverageRating, 1e-9)
	})
}
