package media

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// EmbedKind selects which player the presentation layer renders.
type EmbedKind int

const (
	EmbedDirect EmbedKind = iota
	EmbedYouTube
	EmbedVimeo
	EmbedDrive
)

func (k EmbedKind) String() string {
	switch k {
	case EmbedYouTube:
		return "youtube"
	case EmbedVimeo:
		return "vimeo"
	case EmbedDrive:
		return "drive"
	default:
		return "direct"
	}
}

type Embed struct {
	Kind EmbedKind
	URL  string
}

var youtubeIdRe = regexp.MustCompile(`(?:youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*)`)

// YouTubeId extracts the 11-character video id from any of the common
// YouTube URL shapes. ok is false when no id is found.
func YouTubeId(rawURL string) (string, bool) {
	m := youtubeIdRe.FindStringSubmatch(rawURL)
	if m == nil || len(m[1]) != 11 {
		return "", false
	}
	return m[1], true
}

// ResolveEmbed maps a media locator to the player embed that renders it.
// Unknown hosts fall through to the direct file player.
func ResolveEmbed(rawURL string) Embed {
	switch {
	case strings.Contains(rawURL, "youtube.com") || strings.Contains(rawURL, "youtu.be"):
		id, ok := YouTubeId(rawURL)
		if !ok {
			return Embed{Kind: EmbedDirect, URL: rawURL}
		}
		return Embed{
			Kind: EmbedYouTube,
			URL:  fmt.Sprintf("https://www.youtube.com/embed/%s?autoplay=1&rel=0&modestbranding=1&showinfo=0", id),
		}
	case strings.Contains(rawURL, "vimeo.com"):
		id := rawURL[strings.LastIndex(rawURL, "/")+1:]
		if q := strings.Index(id, "?"); q >= 0 {
			id = id[:q]
		}
		return Embed{
			Kind: EmbedVimeo,
			URL:  fmt.Sprintf("https://player.vimeo.com/video/%s?autoplay=1&title=0&byline=0&portrait=0", id),
		}
	case strings.Contains(rawURL, "drive.google.com"):
		return Embed{Kind: EmbedDrive, URL: driveEmbedURL(rawURL)}
	default:
		return Embed{Kind: EmbedDirect, URL: rawURL}
	}
}

func driveEmbedURL(rawURL string) string {
	if _, after, found := strings.Cut(rawURL, "/file/d/"); found {
		fileId, _, _ := strings.Cut(after, "/")
		return fmt.Sprintf("https://drive.google.com/file/d/%s/preview", fileId)
	}
	if u, err := url.Parse(rawURL); err == nil {
		if fileId := u.Query().Get("id"); fileId != "" {
			return fmt.Sprintf("https://drive.google.com/file/d/%s/preview", fileId)
		}
	}
	if strings.Contains(rawURL, "/view") {
		return strings.Replace(rawURL, "/view", "/preview", 1)
	}
	return rawURL
}

// FileIcon classifies a file name by extension for the files tab.
func FileIcon(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	switch ext {
	case "pdf":
		return "document"
	case "doc", "docx":
		return "text"
	case "xls", "xlsx", "ppt", "pptx":
		return "sheet"
	case "zip", "rar":
		return "archive"
	case "mp4":
		return "video"
	case "mp3":
		return "audio"
	case "jpg", "jpeg", "png", "gif":
		return "image"
	default:
		return "file"
	}
}
