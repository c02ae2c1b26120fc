package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImageSlug(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"No Man's Sky", "no_mans_sky"},
		{"Red Dead: Redemption", "red_dead_redemption"},
		{"Half-Life", "half_life"},
		{"S.T.A.L.K.E.R.", "stalker"},
		{"Pokémon Légendes", "pokemon_legendes"},
		{"What Remains of Edith Finch?!", "what_remains_of_edith_finch"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, ImageSlug(tt.title))
		})
	}
}

func TestItemID(t *testing.T) {
	assert.Equal(t, int64(42), ItemID(42, "Celeste"))

	derived := ItemID(0, "Celeste")
	assert.Equal(t, derived, ItemID(0, "Celeste"), "stable across calls")
	assert.NotEqual(t, derived, ItemID(0, "Celeste 2"))
	assert.Positive(t, derived)
}

func TestToItem(t *testing.T) {
	hours := 12.5
	negative := -3.0

	dto := GameDTO{
		Name:  "Half-Life",
		Genre: []string{"Shooter", "Classic"},
		Reviews: []ReviewDTO{
			{Text: "crowbar", Positive: true, Hours: &hours},
			{Text: "dated", Positive: false},
			{Text: "clock skew", Positive: false, Hours: &negative},
		},
	}

	item := ToItem(dto, "https://cdn.example/images/")

	assert.Equal(t, ItemID(0, "Half-Life"), item.ID)
	assert.Equal(t, "Half-Life", item.Title)
	assert.Equal(t, []string{"Shooter", "Classic"}, item.Genres)
	assert.Equal(t, "https://cdn.example/images/half_life.webp", item.ImageRef)
	assert.Equal(t, 12.5, item.Reviews[0].HoursPlayed)
	assert.Equal(t, 0.0, item.Reviews[1].HoursPlayed)
	assert.Equal(t, 0.0, item.Reviews[2].HoursPlayed)
	assert.False(t, item.Reviews[1].IsPositive)
}

func TestToItemPrefersExplicitFields(t *testing.T) {
	dto := GameDTO{
		ID:       9,
		Name:     "old name",
		Title:    "Celeste",
		Genres:   []string{"Platformer"},
		ImageURL: "https://img/celeste.png",
	}

	item := ToItem(dto, "https://cdn.example")
	assert.Equal(t, int64(9), item.ID)
	assert.Equal(t, "Celeste", item.Title)
	assert.Equal(t, []string{"Platformer"}, item.Genres)
	assert.Equal(t, "https://img/celeste.png", item.ImageRef)
	assert.Empty(t, item.Reviews)

	assert.Empty(t, ToItem(GameDTO{Name: "x"}, "").ImageRef)
}
