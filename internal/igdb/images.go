package igdb

const imageBaseURL = "https://images.igdb.com/igdb/image/upload"

// ImageSize is a catalog image size preset.
type ImageSize string

const (
	SizeCoverSmall     ImageSize = "cover_small"
	SizeCoverBig       ImageSize = "cover_big"
	SizeCoverBig2x     ImageSize = "cover_big_2x"
	SizeScreenshotMed  ImageSize = "screenshot_med"
	SizeScreenshotBig  ImageSize = "screenshot_big"
	SizeScreenshotHuge ImageSize = "screenshot_huge"
	SizeThumb          ImageSize = "thumb"
)

// PlaceholderCover is served when a game has no cover.
const PlaceholderCover = "/placeholder-game-cover.svg"

// ImageURL returns the CDN URL of an image at the given size.
func ImageURL(imageID string, size ImageSize) string {
	if imageID == "" {
		return PlaceholderCover
	}
	return imageBaseURL + "/t_" + string(size) + "/" + imageID + ".jpg"
}

// CoverURL returns the default-size cover URL.
func CoverURL(imageID string) string {
	return ImageURL(imageID, SizeCoverBig)
}
