package library

// Extensions is a set of lower-cased file extensions including the dot.
type Extensions map[string]struct{}

// NewExtensions builds a set; entries are lower-cased and get a leading dot.
func NewExtensions(exts ...string) Extensions {
	set := make(Extensions, len(exts))
	for _, ext := range exts {
		set[normalizeExt(ext)] = struct{}{}
	}
	return set
}

func (e Extensions) Contains(ext string) bool {
	_, ok := e[normalizeExt(ext)]
	return ok
}

// VideoExts are the source containers the batch pipeline picks up
var VideoExts = NewExtensions(
	".mp4",  // MPEG-4 Part 14
	".mkv",  // Matroska Video
	".mov",  // QuickTime Movie
	".avi",  // Audio Video Interleave
	".flv",  // Flash Video
	".wmv",  // Windows Media Video
	".m4v",  // iTunes Video
	".webm", // WebM
	".ts",   // MPEG Transport Stream
	".mpeg", // MPEG Video
	".mpg",  // MPEG Video
)

// AudioExts are the inputs the transcription command accepts
var AudioExts = NewExtensions(".mp3", ".wav", ".m4a", ".aac", ".flac", ".ogg", ".opus")

// SubtitleExts are the inputs of the srt2txt converter
var SubtitleExts = NewExtensions(".srt")

// SubtitleJSONExts are the inputs of the json2txt converter
var SubtitleJSONExts = NewExtensions(".json")
