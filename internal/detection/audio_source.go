package detection

// Source types for clips entering the pipeline.
const (
	SourceUpload   = "upload"
	SourceRealtime = "realtime"
)

// AudioSource describes where a clip came from. It is runtime metadata and is
// not persisted apart from ClipName.
type AudioSource struct {
	Type     string // SourceUpload or SourceRealtime
	ClipName string // sanitised original file name
	ClipPath string // path on disk while the clip is being processed
}

// NewAudioSource creates an AudioSource of the given type.
func NewAudioSource(sourceType, clipName, clipPath string) AudioSource {
	if sourceType == "" {
		sourceType = SourceUpload
	}
	return AudioSource{
		Type:     sourceType,
		ClipName: clipName,
		ClipPath: clipPath,
	}
}
