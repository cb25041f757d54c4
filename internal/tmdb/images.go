package tmdb

const imageBaseURL = "https://image.tmdb.org/t/p"

// Common image sizes.
const (
	ThumbSize    = "w200"
	PosterSize   = "w500"
	BackdropSize = "original"
)

// ImageURL resolves a TMDB image path at the given size. An empty path
// yields an empty URL.
func ImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	if size == "" {
		size = PosterSize
	}
	return imageBaseURL + "/" + size + path
}

func YouTubeURL(key string) string {
	return "https://www.youtube.com/watch?v=" + key
}

// YouTubeThumbnail uses the high-quality still, which YouTube generates
// for every upload.
func YouTubeThumbnail(key string) string {
	return "https://img.youtube.com/vi/" + key + "/hqdefault.jpg"
}
