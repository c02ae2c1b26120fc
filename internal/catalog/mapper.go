package catalog

import (
	"hash/fnv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"review-rush-go/internal/game"
)

// ToItem normalizes a backend record. imageBase is used only when the record
// carries no image URL of its own.
func ToItem(dto GameDTO, imageBase string) game.Item {
	title := dto.Title
	if title == "" {
		title = dto.Name
	}
	genres := dto.Genres
	if len(genres) == 0 {
		genres = dto.Genre
	}

	image := dto.ImageURL
	if image == "" && imageBase != "" && title != "" {
		image = strings.TrimSuffix(imageBase, "/") + "/" + ImageSlug(title) + ".webp"
	}

	reviews := make([]game.Review, 0, len(dto.Reviews))
	for _, r := range dto.Reviews {
		hours := 0.0
		if r.Hours != nil && *r.Hours > 0 {
			hours = *r.Hours
		}
		reviews = append(reviews, game.Review{Text: r.Text, IsPositive: r.Positive, HoursPlayed: hours})
	}

	return game.Item{
		ID:       ItemID(dto.ID, title),
		Title:    title,
		Genres:   append([]string(nil), genres...),
		ImageRef: image,
		Reviews:  reviews,
	}
}

// ItemID prefers the backend id and otherwise derives a stable one from the
// title, so the same record keeps its identity across fetches and snapshots.
func ItemID(id int64, title string) int64 {
	if id != 0 {
		return id
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(title))
	return int64(h.Sum64() &^ (1 << 63))
}

// ImageSlug turns "No Man's Sky: Origins" into "no_mans_sky_origins".
func ImageSlug(title string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		switch {
		case r == ' ' || r == '-':
			b.WriteByte('_')
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	return b.String()
}
